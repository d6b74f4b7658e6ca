package worker

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/forge/internal/objective"
	"github.com/seantiz/forge/internal/transport"
)

func testRegistry() *objective.Registry {
	reg := objective.NewDefaultRegistry()
	reg.Register("inf", "always invalid", objective.Func(func(context.Context, []float64) float64 {
		return math.Inf(1)
	}))
	reg.Register("nan", "not a number", objective.Func(func(context.Context, []float64) float64 {
		return math.NaN()
	}))
	reg.Register("slow", "sleeps", objective.Func(func(ctx context.Context, _ []float64) float64 {
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
		}
		return 1
	}))
	return reg
}

func testAgent(opts ...Option) *Agent {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(nil, testRegistry(), opts...)
}

// exchangeOverPipe sends each request over a pipe and collects the replies.
func exchangeOverPipe(t *testing.T, agent *Agent, reqs ...transport.Request) []transport.Response {
	t.Helper()
	server, client := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		agent.handleConnection(context.Background(), server)
	}()

	var resps []transport.Response
	for _, req := range reqs {
		if err := transport.WriteMessage(client, &req); err != nil {
			t.Fatalf("write request: %v", err)
		}
		var resp transport.Response
		if err := transport.ReadMessage(client, &resp); err != nil {
			t.Fatalf("read response: %v", err)
		}
		resps = append(resps, resp)
	}

	if err := transport.WriteMessage(client, &transport.Request{Type: transport.MsgTypeQuit}); err != nil {
		t.Fatalf("write quit: %v", err)
	}
	<-done
	return resps
}

func evalReq(name string, params ...float64) transport.Request {
	return transport.Request{Type: transport.MsgTypeEvaluate, Objective: name, Params: params}
}

func TestEvaluateBuiltin(t *testing.T) {
	resps := exchangeOverPipe(t, testAgent(), evalReq("sphere", 1, 2, 3))
	if resps[0].Error != "" {
		t.Fatalf("Error = %q", resps[0].Error)
	}
	if resps[0].Fitness != 14 {
		t.Errorf("Fitness = %v, want 14", resps[0].Fitness)
	}
}

func TestEvaluateManyOnOneConnection(t *testing.T) {
	resps := exchangeOverPipe(t, testAgent(),
		evalReq("sphere", 1),
		evalReq("sphere", 2),
		evalReq("sphere", 3),
	)
	for i, want := range []float64{1, 4, 9} {
		if resps[i].Fitness != want {
			t.Errorf("response %d Fitness = %v, want %v", i, resps[i].Fitness, want)
		}
	}
}

func TestDefaultObjective(t *testing.T) {
	resps := exchangeOverPipe(t, testAgent(WithDefaultObjective("sphere")), evalReq("", 3))
	if resps[0].Fitness != 9 {
		t.Errorf("Fitness = %v, want 9", resps[0].Fitness)
	}
}

func TestNonFiniteIsInvalid(t *testing.T) {
	resps := exchangeOverPipe(t, testAgent(), evalReq("inf", 1), evalReq("nan", 1))
	for i, resp := range resps {
		if !resp.Invalid {
			t.Errorf("response %d Invalid = false, want true", i)
		}
	}
}

func TestUnknownObjective(t *testing.T) {
	resps := exchangeOverPipe(t, testAgent(), evalReq("nope", 1))
	if !strings.Contains(resps[0].Error, "unknown objective") {
		t.Errorf("Error = %q, want to contain 'unknown objective'", resps[0].Error)
	}
}

func TestUnknownRequestType(t *testing.T) {
	resps := exchangeOverPipe(t, testAgent(), transport.Request{Type: "reboot"})
	if !strings.Contains(resps[0].Error, "unknown request type") {
		t.Errorf("Error = %q, want to contain 'unknown request type'", resps[0].Error)
	}
}

func TestEvaluationTimeout(t *testing.T) {
	agent := testAgent(WithEvaluationTimeout(20 * time.Millisecond))
	resps := exchangeOverPipe(t, agent, evalReq("slow", 1))
	if !resps[0].Invalid {
		t.Error("slow evaluation should be reported invalid")
	}
}

func TestAgentSurvivesErrors(t *testing.T) {
	// An error reply must not end the connection.
	resps := exchangeOverPipe(t, testAgent(), evalReq("nope", 1), evalReq("sphere", 2))
	if resps[0].Error == "" {
		t.Error("first request: expected error")
	}
	if resps[1].Fitness != 4 {
		t.Errorf("second request: Fitness = %v, want 4", resps[1].Fitness)
	}
}

func TestServeOverTCP(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	agent := New(l, testRegistry(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- agent.Serve(ctx) }()

	conn, err := transport.Dial(context.Background(), transport.NetworkTCP, l.Addr().String(), "rastrigin")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	fitness, err := conn.Evaluate(context.Background(), []float64{0, 0})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if fitness != 0 {
		t.Errorf("fitness = %v, want 0", fitness)
	}
	conn.Close()

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
