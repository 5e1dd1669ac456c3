package grpcserver

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/apptslots/libs/grpcx"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type Client struct {
	conn *grpc.ClientConn
}

func NewClient(addr string, opts grpcx.DialOptions) (*Client, error) {
	conn, err := grpcx.NewClient(addr, opts)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// GetSlots returns the raw response struct; months are under "months".
func (c *Client) GetSlots(ctx context.Context, q slots.Query) (*structpb.Struct, error) {
	fields := map[string]any{"appointment_type_id": q.AppointmentTypeID}
	if q.ViewerTimezone != "" {
		fields["timezone"] = q.ViewerTimezone
	}
	if q.ChosenStaffUserID != "" {
		fields["staff_user_id"] = q.ChosenStaffUserID
	}
	if !q.Reference.IsZero() {
		fields["reference"] = q.Reference.UTC().Format(time.RFC3339)
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, getSlotsMethod, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// CountSlots sums the slots of every day in a GetSlots response.
func CountSlots(res *structpb.Struct) int {
	n := 0
	for _, month := range res.GetFields()["months"].GetListValue().GetValues() {
		for _, week := range month.GetStructValue().GetFields()["weeks"].GetListValue().GetValues() {
			for _, day := range week.GetStructValue().GetFields()["days"].GetListValue().GetValues() {
				n += len(day.GetStructValue().GetFields()["slots"].GetListValue().GetValues())
			}
		}
	}
	return n
}
