package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/dmitrijs2005/ridermanager/internal/common"
	"github.com/dmitrijs2005/ridermanager/internal/logging"
	"github.com/dmitrijs2005/ridermanager/internal/server/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// -------- test fakes --------

type fakeProvisioner struct {
	provisioned []*models.RiderEvent
	err         error
}

func (f *fakeProvisioner) Provision(ctx context.Context, event *models.RiderEvent) (*models.Rider, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.provisioned = append(f.provisioned, event)
	return &models.Rider{ID: "rid-1", ExternalUserID: event.ExternalUserID}, nil
}

type fakeDocStore struct {
	stored []*models.Document
	err    error
}

func (f *fakeDocStore) Store(ctx context.Context, doc *models.Document) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, doc)
	return nil
}

type fakeAcker struct {
	acked    []uint64
	nacked   []uint64
	requeued bool
}

func (f *fakeAcker) Ack(tag uint64, multiple bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcker) Nack(tag uint64, multiple bool, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	f.requeued = requeue
	return nil
}

// -------- helpers --------

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestConsumer(riders RiderProvisioner, documents DocumentStore) *Consumer {
	return NewConsumer(nil, testLogger(), riders, documents, "rider-info", "image-stream")
}

func riderInfoBody(t *testing.T, userID string) []byte {
	t.Helper()
	b, err := json.Marshal(models.RiderEvent{
		ExternalUserID: userID,
		DisplayName:    "Ana",
		TaxID:          "12345",
		DateOfBirth:    "1990-05-01",
		LicenseNumber:  "L1",
		LicenseType:    "B",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func chunkBody(t *testing.T, owner string, seq int, payload string, final bool) []byte {
	t.Helper()
	b, err := json.Marshal(chunk(owner, seq, payload, final))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// -------- tests --------

func TestProcess_AcksOnSuccess(t *testing.T) {
	riders := &fakeProvisioner{}
	c := newTestConsumer(riders, &fakeDocStore{})
	ack := &fakeAcker{}

	d := amqp.Delivery{DeliveryTag: 7, Body: riderInfoBody(t, "u1")}
	c.process(context.Background(), "rider-info", d, ack, c.handleRiderInfo)

	if len(ack.acked) != 1 || ack.acked[0] != 7 {
		t.Fatalf("expected ack of tag 7, got %+v", ack)
	}
	if len(riders.provisioned) != 1 || riders.provisioned[0].ExternalUserID != "u1" {
		t.Fatalf("rider not provisioned: %+v", riders.provisioned)
	}
}

func TestProcess_NacksWithRequeueOnHandlerError(t *testing.T) {
	riders := &fakeProvisioner{err: common.ErrorConflict}
	c := newTestConsumer(riders, &fakeDocStore{})
	ack := &fakeAcker{}

	d := amqp.Delivery{DeliveryTag: 3, Body: riderInfoBody(t, "u1")}
	c.process(context.Background(), "rider-info", d, ack, c.handleRiderInfo)

	if len(ack.nacked) != 1 || ack.nacked[0] != 3 || !ack.requeued {
		t.Fatalf("expected nack with requeue, got %+v", ack)
	}
}

func TestHandleRiderInfo_MalformedMessage(t *testing.T) {
	c := newTestConsumer(&fakeProvisioner{}, &fakeDocStore{})

	err := c.handleRiderInfo(context.Background(), []byte("{not json"))
	if !errors.Is(err, common.ErrorMalformedMessage) {
		t.Fatalf("want ErrorMalformedMessage, got %v", err)
	}
}

func TestHandleImageStream_MalformedMessage(t *testing.T) {
	c := newTestConsumer(&fakeProvisioner{}, &fakeDocStore{})

	err := c.handleImageStream(context.Background(), []byte("%%"))
	if !errors.Is(err, common.ErrorMalformedMessage) {
		t.Fatalf("want ErrorMalformedMessage, got %v", err)
	}
}

func TestMalformedMessage_DoesNotBlockOtherStream(t *testing.T) {
	riders := &fakeProvisioner{}
	c := newTestConsumer(riders, &fakeDocStore{})
	ack := &fakeAcker{}

	// poison message on the image stream
	c.process(context.Background(), "image-stream", amqp.Delivery{DeliveryTag: 1, Body: []byte("junk")}, ack, c.handleImageStream)
	if len(ack.nacked) != 1 || !ack.requeued {
		t.Fatalf("expected nack with requeue, got %+v", ack)
	}

	// rider-info still progresses
	c.process(context.Background(), "rider-info", amqp.Delivery{DeliveryTag: 2, Body: riderInfoBody(t, "u1")}, ack, c.handleRiderInfo)
	if len(ack.acked) != 1 {
		t.Fatalf("rider-info stream blocked: %+v", ack)
	}
}

func TestHandleImageStream_BuffersUntilFinal(t *testing.T) {
	docs := &fakeDocStore{}
	c := newTestConsumer(&fakeProvisioner{}, docs)
	ctx := context.Background()

	if err := c.handleImageStream(ctx, chunkBody(t, "u1", 0, "AA", false)); err != nil {
		t.Fatalf("chunk 0: %v", err)
	}
	if err := c.handleImageStream(ctx, chunkBody(t, "u1", 1, "BB", false)); err != nil {
		t.Fatalf("chunk 1: %v", err)
	}
	if len(docs.stored) != 0 {
		t.Fatalf("document stored before final chunk")
	}

	if err := c.handleImageStream(ctx, chunkBody(t, "u1", 2, "CC", true)); err != nil {
		t.Fatalf("final chunk: %v", err)
	}
	if len(docs.stored) != 1 || !bytes.Equal(docs.stored[0].Bytes, []byte("AABBCC")) {
		t.Fatalf("unexpected stored document: %+v", docs.stored)
	}
}

func TestHandleImageStream_OutOfOrderArrival(t *testing.T) {
	docs := &fakeDocStore{}
	c := newTestConsumer(&fakeProvisioner{}, docs)
	ctx := context.Background()

	// arrival order 1, 0, 2(final) must still produce AABBCC
	for _, body := range [][]byte{
		chunkBody(t, "u1", 1, "BB", false),
		chunkBody(t, "u1", 0, "AA", false),
		chunkBody(t, "u1", 2, "CC", true),
	} {
		if err := c.handleImageStream(ctx, body); err != nil {
			t.Fatalf("handleImageStream: %v", err)
		}
	}

	if len(docs.stored) != 1 || !bytes.Equal(docs.stored[0].Bytes, []byte("AABBCC")) {
		t.Fatalf("unexpected stored document: %+v", docs.stored)
	}
	if docs.stored[0].OwnerID != "u1" || docs.stored[0].FileName != "cnh.png" {
		t.Fatalf("unexpected document metadata: %+v", docs.stored[0])
	}
}

func TestHandleImageStream_RetryAfterRiderNotFound(t *testing.T) {
	docs := &fakeDocStore{err: fmt.Errorf("rider u1: %w", common.ErrorNotFound)}
	c := newTestConsumer(&fakeProvisioner{}, docs)
	ctx := context.Background()

	// chunks arrive before the rider exists
	_ = c.handleImageStream(ctx, chunkBody(t, "u1", 0, "AA", false))
	_ = c.handleImageStream(ctx, chunkBody(t, "u1", 1, "BB", false))

	err := c.handleImageStream(ctx, chunkBody(t, "u1", 2, "CC", true))
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
	if len(docs.stored) != 0 {
		t.Fatalf("document must not be stored yet")
	}

	// rider provisioned; the broker redelivers the final chunk
	docs.err = nil
	if err := c.handleImageStream(ctx, chunkBody(t, "u1", 2, "CC", true)); err != nil {
		t.Fatalf("redelivered final chunk: %v", err)
	}

	if len(docs.stored) != 1 || !bytes.Equal(docs.stored[0].Bytes, []byte("AABBCC")) {
		t.Fatalf("unexpected stored document after retry: %+v", docs.stored)
	}
}

func TestHandleImageStream_OwnersDoNotInterleave(t *testing.T) {
	docs := &fakeDocStore{}
	c := newTestConsumer(&fakeProvisioner{}, docs)
	ctx := context.Background()

	_ = c.handleImageStream(ctx, chunkBody(t, "u1", 0, "AA", false))
	_ = c.handleImageStream(ctx, chunkBody(t, "u2", 0, "XX", false))
	_ = c.handleImageStream(ctx, chunkBody(t, "u1", 1, "BB", true))
	_ = c.handleImageStream(ctx, chunkBody(t, "u2", 1, "YY", true))

	if len(docs.stored) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs.stored))
	}
	if !bytes.Equal(docs.stored[0].Bytes, []byte("AABB")) || docs.stored[0].OwnerID != "u1" {
		t.Fatalf("unexpected first document: %+v", docs.stored[0])
	}
	if !bytes.Equal(docs.stored[1].Bytes, []byte("XXYY")) || docs.stored[1].OwnerID != "u2" {
		t.Fatalf("unexpected second document: %+v", docs.stored[1])
	}
}

func TestConsumeLoop_StopsOnContextCancel(t *testing.T) {
	c := newTestConsumer(&fakeProvisioner{}, &fakeDocStore{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	deliveries := make(chan amqp.Delivery)
	done := make(chan struct{})
	go func() {
		c.consumeLoop(ctx, "rider-info", deliveries, &fakeAcker{}, c.handleRiderInfo)
		close(done)
	}()

	<-done
}

func TestConsumeLoop_StopsOnClosedChannel(t *testing.T) {
	c := newTestConsumer(&fakeProvisioner{}, &fakeDocStore{})

	deliveries := make(chan amqp.Delivery)
	close(deliveries)

	done := make(chan struct{})
	go func() {
		c.consumeLoop(context.Background(), "rider-info", deliveries, &fakeAcker{}, c.handleRiderInfo)
		close(done)
	}()

	<-done
}
