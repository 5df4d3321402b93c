package models

import (
	"encoding/json"
	"testing"
)

func TestDecodePayloadRoundTrip(t *testing.T) {
	payload := MatchGroupCreatedPayload{
		MatchGroupId:       7,
		Direction:          DirectionOutflow,
		BankTransactionIds: []int{11},
		EntryIds:           []int{21, 22},
		TotalCents:         12000,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	activity := Activity{EventType: EventMatchGroupCreated, PayloadJson: string(raw)}
	decoded, err := activity.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	got, ok := decoded.(*MatchGroupCreatedPayload)
	if !ok {
		t.Fatalf("decoded type = %T", decoded)
	}
	if got.MatchGroupId != 7 || got.Direction != DirectionOutflow || got.TotalCents != 12000 {
		t.Errorf("decoded = %+v", got)
	}
	if len(got.EntryIds) != 2 || got.EntryIds[1] != 22 {
		t.Errorf("entry ids = %v", got.EntryIds)
	}
}

func TestDecodePayloadVoidedCarriesReason(t *testing.T) {
	raw, _ := json.Marshal(MatchGroupVoidedPayload{MatchGroupId: 3, Reason: "entered against the wrong account"})
	activity := Activity{EventType: EventMatchGroupVoided, PayloadJson: string(raw)}
	decoded, err := activity.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if p := decoded.(*MatchGroupVoidedPayload); p.Reason != "entered against the wrong account" {
		t.Errorf("reason = %q", p.Reason)
	}
}

func TestDecodePayloadUnknownEvent(t *testing.T) {
	activity := Activity{EventType: EventType("SOMETHING_ELSE"), PayloadJson: "{}"}
	if _, err := activity.DecodePayload(); err == nil {
		t.Fatal("unknown event type must error")
	}
}
