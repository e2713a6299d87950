package observability

import (
	"bytes"
	"strings"
	"testing"
)

func TestRecoverPanic(t *testing.T) {
	t.Run("recovers and logs the panic", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(ErrorLevel, &buf)

		func() {
			defer RecoverPanic(logger, "sweep cycle")
			panic("broken invariant")
		}()

		entry := decodeLogLine(t, &buf)
		if entry["msg"] != "PANIC recovered" {
			t.Errorf("Expected PANIC recovered message, got %v", entry["msg"])
		}
		if entry["panic"] != "broken invariant" {
			t.Errorf("Expected panic value in entry, got %v", entry["panic"])
		}
		if entry["context"] != "sweep cycle" {
			t.Errorf("Expected context field, got %v", entry["context"])
		}
		stack, _ := entry["stack"].(string)
		if !strings.Contains(stack, "panic_handler_test.go") {
			t.Error("Expected the stack trace to reference the panicking frame")
		}
	})

	t.Run("no output without a panic", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(ErrorLevel, &buf)

		func() {
			defer RecoverPanic(logger, "quiet path")
		}()

		if buf.Len() != 0 {
			t.Errorf("Expected no output, got %q", buf.String())
		}
	})
}

func TestMustRecover(t *testing.T) {
	t.Run("converts a panic to an error", func(t *testing.T) {
		err := func() (err error) {
			defer func() {
				if rerr := MustRecover(recover()); rerr != nil {
					err = rerr
				}
			}()
			panic("plugin exploded")
		}()

		if err == nil {
			t.Fatal("Expected an error from the recovered panic")
		}
		if !strings.Contains(err.Error(), "plugin exploded") {
			t.Errorf("Expected the panic value in the error, got %v", err)
		}
	})

	t.Run("nil means no panic", func(t *testing.T) {
		if err := MustRecover(nil); err != nil {
			t.Errorf("Expected nil, got %v", err)
		}
	})
}
