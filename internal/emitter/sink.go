package emitter

import (
	"context"
	"encoding/json"
	"fmt"
)

// JSONSink returns a sink that marshals every item with encode and
// publishes it to topic. A nil encode marshals the item itself.
func JSONSink[T any](p Publisher, topic string, qos byte, encode func(T) any) func(context.Context, T) error {
	return func(ctx context.Context, item T) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		var v any = item
		if encode != nil {
			v = encode(item)
		}
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal item: %w", err)
		}
		return p.Publish(topic, payload, qos)
	}
}
