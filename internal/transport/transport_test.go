package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
)

type echoHandler struct{}

type echoRequest struct {
	Text string `json:"text"`
}

type echoResponse struct {
	Text string `json:"text"`
}

func (echoHandler) Handle(method string, params json.RawMessage) (any, error) {
	switch method {
	case "echo":
		var req echoRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, err
		}
		return &echoResponse{Text: req.Text}, nil
	case "fail":
		return nil, errors.New("handler refused")
	default:
		return nil, fmt.Errorf("unknown method %q", method)
	}
}

func testClient(t *testing.T) *Client {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	go func() { _ = NewServer(echoHandler{}, zap.NewNop()).Serve(l) }()

	c, err := Dial(l.Addr().String(), zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func await(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for response")
		return nil
	}
}

func TestCall_RoundTrip(t *testing.T) {
	c := testClient(t)

	resp := &echoResponse{}
	done := make(chan error, 1)
	c.Call("echo", echoRequest{Text: "hello"}, resp, func(err error) { done <- err })

	if err := await(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "hello" {
		t.Errorf("expected echoed text, got %q", resp.Text)
	}
}

func TestCall_HandlerErrorDelivered(t *testing.T) {
	c := testClient(t)

	done := make(chan error, 1)
	c.Call("fail", struct{}{}, nil, func(err error) { done <- err })

	err := await(t, done)
	if err == nil || err.Error() != "handler refused" {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestCall_ResponsesMatchedByID(t *testing.T) {
	c := testClient(t)

	const n = 20
	type outcome struct {
		want string
		resp *echoResponse
		err  error
	}
	results := make(chan outcome, n)

	for i := 0; i < n; i++ {
		want := fmt.Sprintf("message-%d", i)
		resp := &echoResponse{}
		c.Call("echo", echoRequest{Text: want}, resp, func(err error) {
			results <- outcome{want: want, resp: resp, err: err}
		})
	}

	for i := 0; i < n; i++ {
		select {
		case out := <-results:
			if out.err != nil {
				t.Fatalf("unexpected error: %v", out.err)
			}
			if out.resp.Text != out.want {
				t.Errorf("response crossed wires: got %q want %q", out.resp.Text, out.want)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for responses")
		}
	}
}

func TestClose_FailsPendingCalls(t *testing.T) {
	// A half-open pipe gives a request that never answers.
	clientSide, serverSide := net.Pipe()
	c := NewClient(clientSide, zap.NewNop())

	done := make(chan error, 1)
	go c.Call("echo", echoRequest{Text: "x"}, &echoResponse{}, func(err error) { done <- err })

	// Swallow the request so the call stays pending.
	buf := make([]byte, 1024)
	if _, err := serverSide.Read(buf); err != nil {
		t.Fatalf("read request: %v", err)
	}

	_ = c.Close()
	_ = serverSide.Close()

	if err := await(t, done); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestCall_AfterCloseFails(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	c := NewClient(clientSide, zap.NewNop())
	_ = serverSide.Close()
	_ = c.Close()

	done := make(chan error, 1)
	c.Call("echo", echoRequest{Text: "x"}, nil, func(err error) { done <- err })

	if err := await(t, done); err == nil {
		t.Error("expected a call on a closed connection to fail")
	}
}
