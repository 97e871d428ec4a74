package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestUnify_IsIdempotent(t *testing.T) {
	first := Unify(LayerServiceDriver, PhaseMiddleware, errors.New("nope"))
	second := Unify(LayerServiceDriver, PhasePostProcess, first)
	if second != first {
		t.Fatalf("expected unified error to pass through unchanged")
	}
}

func TestUnify_EnvelopesErrorsThatOnlyWrapAUnifiedError(t *testing.T) {
	inner := &UnifiedError{Type: LayerServiceDriver, SubType: PhaseGroup, Err: "x"}
	wrapped := fmt.Errorf("auth: token refresh failed: %w", inner)

	unified := Unify(LayerServiceDriver, PhaseMiddleware, wrapped)
	if unified == inner {
		t.Fatalf("expected a new envelope around the wrapping error")
	}
	if unified.SubType != PhaseMiddleware || unified.Err != wrapped {
		t.Fatalf("unexpected envelope %#v", unified)
	}
	if got, ok := AsUnified(wrapped); !ok || got != inner {
		t.Fatalf("expected AsUnified to keep matching through the chain")
	}
}

func TestUnify_WrapsArbitraryValues(t *testing.T) {
	unified := Unify(LayerServiceDriver, PhaseGroup, "plain")
	if unified.Err != "plain" || unified.SubType != PhaseGroup {
		t.Fatalf("unexpected unified value %#v", unified)
	}
	if unified.Error() != "service driver: group process: plain" {
		t.Fatalf("unexpected message %q", unified.Error())
	}
}

func TestUnifiedError_IsMatchesPhase(t *testing.T) {
	err := Unify(LayerServiceDriver, PhaseRequest, errors.New("dial"))
	if !errors.Is(err, &UnifiedError{Type: LayerServiceDriver, SubType: PhaseRequest}) {
		t.Fatalf("expected errors.Is to match type and phase")
	}
	if errors.Is(err, &UnifiedError{Type: LayerServiceDriver, SubType: PhaseDecode}) {
		t.Fatalf("expected phase mismatch")
	}
}

func TestUnifiedFromPayload(t *testing.T) {
	unified, ok := unifiedFromPayload(Bucket{
		"type":    "service provider",
		"subType": "service handler",
		"error":   map[string]any{"code": "E1"},
	})
	if !ok {
		t.Fatalf("expected unified shape to be recognized")
	}
	inner, ok := serviceHandlerValue(unified)
	if !ok {
		t.Fatalf("expected service handler value")
	}
	if bucket, ok := inner.(Bucket); !ok || bucket["code"] != "E1" {
		t.Fatalf("unexpected inner value %#v", inner)
	}

	if _, ok := unifiedFromPayload(Bucket{"error": "boom"}); ok {
		t.Fatalf("expected plain error payload not to be unified")
	}
}
