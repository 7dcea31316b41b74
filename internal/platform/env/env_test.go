package env

import (
	"testing"
	"time"
)

func TestString_Default(t *testing.T) {
	got := String("ENV_STRING_DOES_NOT_EXIST", "fallback")
	if got != "fallback" {
		t.Fatalf("String()=%q, want fallback", got)
	}
}

func TestString_Override(t *testing.T) {
	t.Setenv("ENV_STRING_KEY", "value")
	got := String("ENV_STRING_KEY", "fallback")
	if got != "value" {
		t.Fatalf("String()=%q, want value", got)
	}
}

func TestStringSlice_Default(t *testing.T) {
	got := StringSlice("ENV_SLICE_DOES_NOT_EXIST", []string{"a", "b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("StringSlice()=%v, want [a b]", got)
	}
}

func TestStringSlice_TrimsBlanks(t *testing.T) {
	t.Setenv("ENV_SLICE_KEY", " x, ,y ,")
	got := StringSlice("ENV_SLICE_KEY", nil)
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("StringSlice()=%v, want [x y]", got)
	}
}

func TestInt_Default(t *testing.T) {
	got, err := Int("ENV_INT_DOES_NOT_EXIST", 42)
	if err != nil {
		t.Fatalf("Int() err=%v", err)
	}
	if got != 42 {
		t.Fatalf("Int()=%v, want 42", got)
	}
}

func TestInt_Override(t *testing.T) {
	t.Setenv("ENV_INT_KEY", "7")
	got, err := Int("ENV_INT_KEY", 42)
	if err != nil {
		t.Fatalf("Int() err=%v", err)
	}
	if got != 7 {
		t.Fatalf("Int()=%v, want 7", got)
	}
}

func TestInt_Invalid(t *testing.T) {
	t.Setenv("ENV_INT_KEY_INVALID", "nope")
	if _, err := Int("ENV_INT_KEY_INVALID", 42); err == nil {
		t.Fatalf("Int() expected error")
	}
}

func TestInt64_Override(t *testing.T) {
	t.Setenv("ENV_INT64_KEY", "2147483648")
	got, err := Int64("ENV_INT64_KEY", 0)
	if err != nil {
		t.Fatalf("Int64() err=%v", err)
	}
	if got != 2147483648 {
		t.Fatalf("Int64()=%v, want 2147483648", got)
	}
}

func TestBool_Default(t *testing.T) {
	got, err := Bool("ENV_BOOL_DOES_NOT_EXIST", true)
	if err != nil {
		t.Fatalf("Bool() err=%v", err)
	}
	if got != true {
		t.Fatalf("Bool()=%v, want true", got)
	}
}

func TestBool_Invalid(t *testing.T) {
	t.Setenv("ENV_BOOL_KEY_INVALID", "nope")
	if _, err := Bool("ENV_BOOL_KEY_INVALID", false); err == nil {
		t.Fatalf("Bool() expected error")
	}
}

func TestDuration_Override(t *testing.T) {
	t.Setenv("ENV_DURATION_KEY", "250ms")
	got, err := Duration("ENV_DURATION_KEY", 5*time.Second)
	if err != nil {
		t.Fatalf("Duration() err=%v", err)
	}
	if got != 250*time.Millisecond {
		t.Fatalf("Duration()=%v, want 250ms", got)
	}
}

func TestDuration_Invalid(t *testing.T) {
	t.Setenv("ENV_DURATION_KEY_INVALID", "not-a-duration")
	if _, err := Duration("ENV_DURATION_KEY_INVALID", 5*time.Second); err == nil {
		t.Fatalf("Duration() expected error")
	}
}
