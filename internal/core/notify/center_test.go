package notify

import (
	"testing"
	"time"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

func TestCenterAutoDismissesAfterTTL(t *testing.T) {
	c := NewCenter(40 * time.Millisecond)
	defer c.Close()

	c.Show(domain.NotificationPackageReady)
	n, ok := c.Current()
	if !ok {
		t.Fatalf("expected visible notification")
	}
	if n.Title != "Package Ready" || n.ShownAt.IsZero() {
		t.Fatalf("unexpected notification: %+v", n)
	}

	time.Sleep(15 * time.Millisecond)
	if _, ok := c.Current(); !ok {
		t.Fatalf("notification dismissed before ttl")
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := c.Current(); ok {
		t.Fatalf("expected notification to be dismissed after ttl")
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := c.Current(); ok {
		t.Fatalf("dismissed notification reappeared")
	}
}

func TestCenterReplacesVisibleNotification(t *testing.T) {
	c := NewCenter(60 * time.Millisecond)
	defer c.Close()

	c.Show(domain.NotificationCreateFailed)
	time.Sleep(40 * time.Millisecond)
	c.Show(domain.NotificationPackageReady)

	// The first notification's deadline has passed; the replacement keeps its
	// own full ttl.
	time.Sleep(35 * time.Millisecond)
	n, ok := c.Current()
	if !ok {
		t.Fatalf("replacement dismissed by the earlier timer")
	}
	if n.Title != "Package Ready" {
		t.Fatalf("expected replacement to be visible, got %+v", n)
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := c.Current(); ok {
		t.Fatalf("expected replacement to be dismissed")
	}
}

func TestCenterIgnoresShowAfterClose(t *testing.T) {
	c := NewCenter(time.Second)
	c.Show(domain.NotificationPollFailed)
	c.Close()

	if _, ok := c.Current(); ok {
		t.Fatalf("expected close to dismiss notification")
	}
	c.Show(domain.NotificationPackageReady)
	if _, ok := c.Current(); ok {
		t.Fatalf("expected closed center to ignore Show")
	}
}
