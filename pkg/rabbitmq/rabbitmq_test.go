package rabbitmq

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditHandler_LogsEvent(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handle := NewAuditHandler(logger.WithField("component", "audit"))

	err := handle(amqp.Delivery{
		RoutingKey: "order.cancelled",
		Body:       []byte(`{"order_id":"o-1","order_number":"ORD-1","status":"CANCELLED","payment_status":"REFUNDED","total_amount":"20.00"}`),
	})
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.InfoLevel, entry.Level)
	assert.Equal(t, "order.cancelled", entry.Data["event"])
	assert.Equal(t, "ORD-1", entry.Data["order_number"])
	assert.Equal(t, "REFUNDED", entry.Data["payment_status"])
}

func TestAuditHandler_RejectsGarbage(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handle := NewAuditHandler(logger.WithField("component", "audit"))

	err := handle(amqp.Delivery{Body: []byte("not json")})
	assert.Error(t, err)
	assert.Empty(t, hook.AllEntries())
}

func TestPublish_WithoutChannel(t *testing.T) {
	c := &Client{}
	err := c.Publish(context.Background(), "order.created", []byte("{}"))
	assert.Error(t, err)
}
