package main

import (
	"testing"
	"time"

	"github.com/queuedesk-io/queuedesk/internal/config"
)

func TestAccountPollInterval(t *testing.T) {
	acc := config.MailAccount{PollInterval: 30 * time.Second}
	if got := accountPollInterval(acc, time.Minute); got != 30*time.Second {
		t.Fatalf("expected per-account interval, got %v", got)
	}

	acc.PollInterval = 0
	if got := accountPollInterval(acc, 5*time.Minute); got != 5*time.Minute {
		t.Fatalf("expected global fallback, got %v", got)
	}

	if got := accountPollInterval(acc, 0); got != time.Minute {
		t.Fatalf("expected one minute default, got %v", got)
	}
}

func TestConnectorAccountMapping(t *testing.T) {
	acc := config.MailAccount{
		Queue:            "q1",
		Type:             "pop3s",
		Host:             "mail.example.com",
		Port:             995,
		Username:         "intake",
		Password:         "secret",
		DeleteAfterFetch: true,
		PollInterval:     45 * time.Second,
	}
	mapped := connectorAccount(acc, time.Minute)
	if mapped.QueueSlug != "q1" || mapped.Type != "pop3s" || mapped.Host != "mail.example.com" {
		t.Fatalf("unexpected account %+v", mapped)
	}
	if string(mapped.Password) != "secret" || !mapped.DeleteAfterFetch {
		t.Fatalf("credentials not carried over: %+v", mapped)
	}
	if mapped.PollInterval != 45*time.Second {
		t.Fatalf("expected 45s interval, got %v", mapped.PollInterval)
	}
}
