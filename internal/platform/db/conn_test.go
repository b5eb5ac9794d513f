package db

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

func TestConnFromContext_Nil(t *testing.T) {
	conn := ConnFromContext(context.Background())
	if conn != nil {
		t.Error("expected nil conn from empty context")
	}
}

func TestConnFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBConnKey, "not-a-conn")
	conn := ConnFromContext(ctx)
	if conn != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestTxFromContext_Nil(t *testing.T) {
	tx := TxFromContext(context.Background())
	if tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	tx := TxFromContext(ctx)
	if tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestRunInTx_NoConnectionNoFallback(t *testing.T) {
	called := false
	err := RunInTx(context.Background(), nil, func(ctx context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error without connection or fallback")
	}
	if called {
		t.Error("fn must not run without a transaction")
	}
}

func TestConnMiddleware_AcquireFailureRunsHandlerWithoutConn(t *testing.T) {
	pool, err := pgxpool.New(context.Background(), "postgres://u:p@127.0.0.1:1/x?connect_timeout=1")
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	defer pool.Close()

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/patients", nil), httptest.NewRecorder())

	storeErr := errors.New("store unreachable")
	called := false
	h := ConnMiddleware(pool)(func(c echo.Context) error {
		called = true
		if ConnFromContext(c.Request().Context()) != nil {
			t.Error("expected no connection in context after a failed acquire")
		}
		if c.Get("db") != nil {
			t.Error("expected no db value on the echo context")
		}
		return storeErr
	})

	if err := h(c); !errors.Is(err, storeErr) {
		t.Errorf("expected the handler's error to pass through, got %v", err)
	}
	if !called {
		t.Fatal("expected the handler to run when acquire fails")
	}
}
