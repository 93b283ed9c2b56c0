package payments

import (
	"errors"
	"testing"
)

func TestParseEvent_CheckoutCompleted(t *testing.T) {
	body := []byte(`{
		"id": "evt_checkout",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_1",
			"object": "checkout.session",
			"amount_total": 1500,
			"currency": "usd",
			"payment_intent": "pi_test_1",
			"metadata": {"orderId": "order_1"}
		}}
	}`)
	ev, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.ID != "evt_checkout" || ev.Type != "checkout.session.completed" {
		t.Fatalf("unexpected envelope: %+v", ev)
	}
	cc, ok := ev.Payload.(CheckoutCompleted)
	if !ok {
		t.Fatalf("expected CheckoutCompleted, got %T", ev.Payload)
	}
	if cc.SessionID != "cs_test_1" || cc.AmountTotal == nil || *cc.AmountTotal != 1500 {
		t.Fatalf("unexpected session fields: %+v", cc)
	}
	if cc.Currency == nil || *cc.Currency != "usd" {
		t.Fatalf("currency = %v", cc.Currency)
	}
	if cc.PaymentIntentID == nil || *cc.PaymentIntentID != "pi_test_1" {
		t.Fatalf("payment intent = %v", cc.PaymentIntentID)
	}
	if cc.Metadata.OrderID == nil || *cc.Metadata.OrderID != "order_1" || cc.Metadata.CheckoutSessionID != nil {
		t.Fatalf("metadata = %+v", cc.Metadata)
	}
}

func TestParseEvent_CheckoutCompleted_AbsentVsBlank(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{
		"id":"cs_1","currency":"","payment_intent":null,"metadata":{"orderId":"   "}}}}`)
	ev, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	cc := ev.Payload.(CheckoutCompleted)
	if cc.AmountTotal != nil || cc.Currency != nil || cc.PaymentIntentID != nil || cc.Metadata.OrderID != nil {
		t.Fatalf("expected all optional fields nil, got %+v", cc)
	}
}

func TestParseEvent_ExpandedPaymentIntent(t *testing.T) {
	body := []byte(`{"id":"evt_2","type":"checkout.session.completed","data":{"object":{
		"id":"cs_2","amount_total":0,"payment_intent":{"id":"pi_exp","object":"payment_intent"}}}}`)
	ev, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	cc := ev.Payload.(CheckoutCompleted)
	if cc.PaymentIntentID == nil || *cc.PaymentIntentID != "pi_exp" {
		t.Fatalf("expanded intent id = %v", cc.PaymentIntentID)
	}
	if cc.AmountTotal == nil || *cc.AmountTotal != 0 {
		t.Fatalf("explicit zero amount must be present, got %v", cc.AmountTotal)
	}
}

func TestParseEvent_PaymentIntents(t *testing.T) {
	ok := []byte(`{"id":"evt_pi","type":"payment_intent.succeeded","data":{"object":{
		"id":"pi_1","amount":2000,"amount_received":1999,"currency":"eur",
		"metadata":{"orderId":"o1","checkout_session_id":"cs_9"}}}}`)
	ev, err := ParseEvent(ok)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	ps, isPS := ev.Payload.(PaymentSucceeded)
	if !isPS {
		t.Fatalf("expected PaymentSucceeded, got %T", ev.Payload)
	}
	if ps.IntentID != "pi_1" || *ps.Amount != 2000 || *ps.AmountReceived != 1999 || *ps.Currency != "eur" {
		t.Fatalf("unexpected intent: %+v", ps)
	}
	if *ps.Metadata.OrderID != "o1" || *ps.Metadata.CheckoutSessionID != "cs_9" {
		t.Fatalf("unexpected metadata: %+v", ps.Metadata)
	}

	failed := []byte(`{"id":"evt_pf","type":"payment_intent.payment_failed","data":{"object":{
		"id":"pi_2","amount":2000,"currency":"usd",
		"metadata":{"checkout_session_id":"cs_9"},
		"last_payment_error":{"message":"card declined"}}}}`)
	ev, err = ParseEvent(failed)
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}
	pf, isPF := ev.Payload.(PaymentFailed)
	if !isPF {
		t.Fatalf("expected PaymentFailed, got %T", ev.Payload)
	}
	if pf.IntentID != "pi_2" || pf.FailureMessage == nil || *pf.FailureMessage != "card declined" {
		t.Fatalf("unexpected failed intent: %+v", pf)
	}
	if pf.Metadata.OrderID != nil || *pf.Metadata.CheckoutSessionID != "cs_9" {
		t.Fatalf("unexpected metadata: %+v", pf.Metadata)
	}
}

func TestParseEvent_UnrecognizedIsNotAnError(t *testing.T) {
	body := []byte(`{"id":"evt_x","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	ev, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if _, ok := ev.Payload.(Unrecognized); !ok {
		t.Fatalf("expected Unrecognized, got %T", ev.Payload)
	}
	if ev.Type != "customer.created" {
		t.Fatalf("type = %q", ev.Type)
	}
}

func TestParseEvent_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `{`,
		"missing id":        `{"type":"checkout.session.completed","data":{"object":{"id":"cs"}}}`,
		"missing type":      `{"id":"evt","data":{"object":{"id":"cs"}}}`,
		"object without id": `{"id":"evt","type":"checkout.session.completed","data":{"object":{"amount_total":1}}}`,
		"wrong amount type": `{"id":"evt","type":"payment_intent.succeeded","data":{"object":{"id":"pi","amount":"ten"}}}`,
	}
	for name, body := range cases {
		_, err := ParseEvent([]byte(body))
		if !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("%s: expected ErrMalformedEvent, got %v", name, err)
		}
	}
}
