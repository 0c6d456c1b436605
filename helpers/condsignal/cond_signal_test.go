package condsignal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCondSignal(t *testing.T) {
	s := New()

	waitCh := s.WaitChan()
	select {
	case <-waitCh:
		t.Fatalf("the wait channel is closed before any Broadcast")
	default:
	}

	s.Broadcast()
	select {
	case <-waitCh:
	default:
		t.Fatalf("the wait channel is not closed after a Broadcast")
	}

	// a channel obtained after the broadcast belongs to the next round:
	nextWaitCh := s.WaitChan()
	require.NotEqual(t, waitCh, nextWaitCh)
	select {
	case <-nextWaitCh:
		t.Fatalf("the new wait channel is already closed")
	default:
	}

	s.Broadcast()
	select {
	case <-nextWaitCh:
	default:
		t.Fatalf("the new wait channel is not closed after the second Broadcast")
	}
}
