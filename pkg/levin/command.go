package levin

import (
	"context"

	"github.com/ethpandaops/levin/pkg/portable"
)

// Command describes an invocation: a request of type TReq answered by a
// response of type TResp.
type Command[TReq, TResp any] struct {
	ID   uint32
	Name string
}

// Notification describes a one-way request of type TReq.
type Notification[TReq any] struct {
	ID   uint32
	Name string
}

// storable constrains a type parameter to a pointer implementing Storable.
type storable[T any] interface {
	*T
	portable.Storable
}

// RequestHandler answers a typed request. Returning a nil response and a nil
// error suppresses the response.
type RequestHandler[TReq, TResp any] func(ctx context.Context, conn *Conn, req *TReq) (*TResp, error)

// NotificationHandler consumes a typed notification.
type NotificationHandler[TReq any] func(ctx context.Context, conn *Conn, req *TReq) error

// HandleCommand registers a typed handler for cmd.
func HandleCommand[TReq, TResp any, PReq storable[TReq], PResp storable[TResp]](
	r *Registry,
	cmd Command[TReq, TResp],
	handler RequestHandler[TReq, TResp],
) error {
	return r.RegisterInvoke(cmd.ID, cmd.Name, func(ctx context.Context, conn *Conn, body *portable.Section) (*portable.Section, error) {
		req := new(TReq)
		if err := PReq(req).FromSection(body); err != nil {
			return nil, &DecodeError{Command: cmd.ID, Err: err}
		}

		resp, err := handler(ctx, conn, req)
		if err != nil {
			return nil, err
		}

		if resp == nil {
			return nil, nil
		}

		return PResp(resp).ToSection()
	})
}

// HandleNotification registers a typed handler for n.
func HandleNotification[TReq any, PReq storable[TReq]](
	r *Registry,
	n Notification[TReq],
	handler NotificationHandler[TReq],
) error {
	return r.RegisterNotify(n.ID, n.Name, func(ctx context.Context, conn *Conn, body *portable.Section) error {
		req := new(TReq)
		if err := PReq(req).FromSection(body); err != nil {
			return &DecodeError{Command: n.ID, Err: err}
		}

		return handler(ctx, conn, req)
	})
}

// Invoke sends req over conn and waits for the typed response.
func Invoke[TReq, TResp any, PReq storable[TReq], PResp storable[TResp]](
	ctx context.Context,
	conn *Conn,
	cmd Command[TReq, TResp],
	req *TReq,
) (*TResp, error) {
	body, err := PReq(req).ToSection()
	if err != nil {
		return nil, err
	}

	section, err := conn.Invoke(ctx, cmd.ID, body)
	if err != nil {
		return nil, err
	}

	resp := new(TResp)
	if err := PResp(resp).FromSection(section); err != nil {
		return nil, &DecodeError{Command: cmd.ID, Err: err}
	}

	return resp, nil
}

// Notify sends a typed notification over conn.
func Notify[TReq any, PReq storable[TReq]](
	ctx context.Context,
	conn *Conn,
	n Notification[TReq],
	req *TReq,
) error {
	body, err := PReq(req).ToSection()
	if err != nil {
		return err
	}

	return conn.Notify(ctx, n.ID, body)
}
