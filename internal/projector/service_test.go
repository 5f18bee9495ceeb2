package projector_test

import (
	"context"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	"github.com/aliashahi/secure-online-shop/internal/projector"
)

func TestHandleEventRejectsMalformedEnvelope(t *testing.T) {
	s := &projector.Service{ServiceName: "shop-test"}

	err := s.HandleEvent(context.Background(), kafkago.Message{Value: []byte(`{`)})
	assert.Error(t, err, "malformed envelopes must not be committed")
}
