package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

func TestPublishEventReachesEventsAndAllSubscribers(t *testing.T) {
	b := New()
	eventsSub := b.Subscribe(ChannelEvents, 4)
	allSub := b.Subscribe(ChannelAll, 4)
	alertsSub := b.Subscribe(ChannelAlerts, 4)

	ev := model.New(time.Now(), model.KindEvent)
	b.PublishEvent(ev)

	select {
	case msg := <-eventsSub.C:
		require.Equal(t, ev.ID, msg.Event.ID)
	case <-time.After(time.Second):
		t.Fatal("events subscriber did not receive message")
	}
	select {
	case msg := <-allSub.C:
		require.Equal(t, ev.ID, msg.Event.ID)
	case <-time.After(time.Second):
		t.Fatal("all subscriber did not receive message")
	}
	select {
	case <-alertsSub.C:
		t.Fatal("alerts subscriber should not receive an event-channel publish")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishAlertReachesAlertsAndAllSubscribers(t *testing.T) {
	b := New()
	alertsSub := b.Subscribe(ChannelAlerts, 4)

	det := model.NewDetection("ev-1", model.DetectionRule, model.SeverityHigh)
	b.PublishAlert(det)

	select {
	case msg := <-alertsSub.C:
		require.Equal(t, det.ID, msg.Detection.ID)
	case <-time.After(time.Second):
		t.Fatal("alerts subscriber did not receive message")
	}
}

func TestSlowSubscriberIsDisconnected(t *testing.T) {
	b := New()
	sub := b.Subscribe(ChannelEvents, 1)

	// Fill the buffer so the next publish must wait out sendTimeout.
	b.PublishEvent(model.New(time.Now(), model.KindEvent))
	require.Equal(t, 1, b.SubscriberCount(ChannelEvents))

	done := make(chan struct{})
	go func() {
		b.PublishEvent(model.New(time.Now(), model.KindEvent))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish should not block the producer past the send timeout")
	}

	require.Eventually(t, func() bool {
		return b.SubscriberCount(ChannelEvents) == 0
	}, time.Second, 10*time.Millisecond)

	_, ok := <-sub.C
	require.True(t, ok) // the one buffered message is still readable
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe(ChannelEvents, 4)
	sub.Unsubscribe()
	require.Equal(t, 0, b.SubscriberCount(ChannelEvents))

	_, ok := <-sub.C
	require.False(t, ok)
}
