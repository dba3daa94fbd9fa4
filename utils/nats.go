package utils

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes JSON events on a NATS connection
type NATSPublisher struct{ nc *nats.Conn }

func ConnectNATS(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("product-descriptions-ai"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

func (p *NATSPublisher) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.nc.Publish(subject, b)
}
