package twilio_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marquee/internal/services"
	"marquee/internal/services/twilio"
	"marquee/internal/testsupport"
)

func TestSendSMSPostsForm(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	var gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotTo = r.PostForm.Get("To")
		gotFrom = r.PostForm.Get("From")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithTwilio("AC123", "secret", "+15550009999"))
	cfg.Twilio.BaseURL = server.URL
	sender := twilio.NewSender(cfg)

	if err := sender.SendSMS(context.Background(), "+15550001111", "hello"); err != nil {
		t.Fatalf("SendSMS returned error: %v", err)
	}
	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotUser != "AC123" || gotPass != "secret" {
		t.Fatalf("unexpected auth: %s/%s", gotUser, gotPass)
	}
	if gotTo != "+15550001111" || gotFrom != "+15550009999" || gotBody != "hello" {
		t.Fatalf("unexpected form: to=%s from=%s body=%s", gotTo, gotFrom, gotBody)
	}
}

func TestSendSMSServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithTwilio("AC123", "secret", "+15550009999"))
	cfg.Twilio.BaseURL = server.URL
	sender := twilio.NewSender(cfg)

	err := sender.SendSMS(context.Background(), "+15550001111", "hello")
	if !services.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestSendSMSClientErrorIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid number"}`))
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithTwilio("AC123", "secret", "+15550009999"))
	cfg.Twilio.BaseURL = server.URL
	sender := twilio.NewSender(cfg)

	err := sender.SendSMS(context.Background(), "+15550001111", "hello")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid number") {
		t.Fatalf("expected api message in error, got %v", err)
	}
}

func TestUnconfiguredSenderIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	sender := twilio.NewSender(cfg)

	if err := sender.SendSMS(context.Background(), "+15550001111", "hello"); err != nil {
		t.Fatalf("noop sender returned error: %v", err)
	}
}

func TestReplyTwiML(t *testing.T) {
	out, err := twilio.ReplyTwiML("on it!")
	if err != nil {
		t.Fatalf("ReplyTwiML returned error: %v", err)
	}
	if !strings.Contains(string(out), "<Response><Message>on it!</Message></Response>") {
		t.Fatalf("unexpected twiml: %s", out)
	}

	empty, err := twilio.ReplyTwiML("")
	if err != nil {
		t.Fatalf("ReplyTwiML returned error: %v", err)
	}
	if !strings.Contains(string(empty), "<Response></Response>") {
		t.Fatalf("unexpected empty twiml: %s", empty)
	}
}
