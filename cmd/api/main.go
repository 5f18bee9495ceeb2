package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/aliashahi/secure-online-shop/internal/config"
	"github.com/aliashahi/secure-online-shop/internal/httpx"
	"github.com/aliashahi/secure-online-shop/internal/journal"
	kafkax "github.com/aliashahi/secure-online-shop/internal/kafka"
	"github.com/aliashahi/secure-online-shop/internal/ledger"
	"github.com/aliashahi/secure-online-shop/internal/redisx"
)

// fanoutSink delivers every committed ledger event to the Postgres journal
// and the matching Kafka topic. The ledger state is already committed when
// this runs, so delivery failures are logged, not propagated.
type fanoutSink struct {
	journal  *journal.Journal
	products *kafkax.Producer
	orders   *kafkax.Producer
}

func (s *fanoutSink) Emit(ctx context.Context, env ledger.Envelope) {
	if err := s.journal.Append(ctx, env); err != nil {
		log.Printf("journal append %s: %v", env.EventType, err)
	}

	value := kafkax.MustMarshal(env)
	headers := []kafkago.Header{
		{Key: "x-event-type", Value: []byte(env.EventType)},
		{Key: "x-event-version", Value: []byte("1")},
	}

	p := s.orders
	switch env.EventType {
	case ledger.EventProductRegistered, ledger.EventProductActiveSet:
		p = s.products
	}
	p.Publish([]byte(env.CorrelationID), value, headers...)
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// journal DB
	db, err := journal.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	jrnl := journal.New(db)
	if err := jrnl.Init(ctx); err != nil {
		log.Fatalf("journal init: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per event family
	pProducts := kafkax.NewProducer(cfg.KafkaBrokers, ledger.TopicProductEvents, 1024)
	pProducts.Start(ctx)
	pOrders := kafkax.NewProducer(cfg.KafkaBrokers, ledger.TopicOrderEvents, 1024)
	pOrders.Start(ctx)

	led := ledger.New(ledger.Options{
		Service: cfg.ServiceName,
		Admins:  cfg.AdminAccounts,
		Sink:    &fanoutSink{journal: jrnl, products: pProducts, orders: pOrders},
	})

	// rebuild ledger state from the journal
	applied, err := jrnl.Replay(ctx, led.Restore)
	if err != nil {
		log.Fatalf("journal replay: %v", err)
	}
	log.Printf("journal replay: %d events applied", applied)

	router := httpx.NewRouter()
	lh := &httpx.LedgerHandler{Ledger: led, Redis: rdb}
	lh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	pProducts.Close()
	pOrders.Close()
	pProducts.WaitClosed()
	pOrders.WaitClosed()
	cancel()
}
