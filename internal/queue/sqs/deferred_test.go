package sqsqueue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"jobnotify/internal/domain"
)

// fakeSQS is an in-memory queue good enough for the receive/delete loop.
type fakeSQS struct {
	sent      []*sqs.SendMessageInput
	messages  []types.Message
	deleted   []string
	failRecv  bool
	failAfter int
	recvs     int
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, in)
	n := strconv.Itoa(len(f.sent))
	f.messages = append(f.messages, types.Message{
		Body:          in.MessageBody,
		MessageId:     aws.String("m" + n),
		ReceiptHandle: aws.String("rh" + n),
	})
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.recvs++
	if f.failRecv && f.recvs > f.failAfter {
		return nil, errors.New("boom")
	}
	n := int(in.MaxNumberOfMessages)
	if n > len(f.messages) {
		n = len(f.messages)
	}
	batch := f.messages[:n]
	f.messages = f.messages[n:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) GetQueueAttributes(ctx context.Context, in *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{Attributes: map[string]string{
		string(types.QueueAttributeNameApproximateNumberOfMessages): strconv.Itoa(len(f.messages)),
	}}, nil
}

func TestAppendSetsFIFOAttributes(t *testing.T) {
	f := &fakeSQS{}
	q := &DeferredQueue{SQS: f, QueueURL: "https://sqs.local/000/deferred.fifo"}

	if err := q.AppendSMS(context.Background(), domain.QueuedSMS{ID: "sms_1", To: "+61412345678", Message: "hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	in := f.sent[0]
	if aws.ToString(in.MessageGroupId) != groupID || aws.ToString(in.MessageDeduplicationId) != "sms_1" {
		t.Fatalf("fifo attributes missing: %+v", in)
	}

	var item domain.QueuedSMS
	if err := json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &item); err != nil {
		t.Fatalf("body not json: %v", err)
	}
	if item.Message != "hi" {
		t.Fatalf("unexpected body %+v", item)
	}

	std := &DeferredQueue{SQS: &fakeSQS{}, QueueURL: "https://sqs.local/000/deferred"}
	_ = std.AppendSMS(context.Background(), domain.QueuedSMS{ID: "sms_2"})
	if std.SQS.(*fakeSQS).sent[0].MessageGroupId != nil {
		t.Fatalf("standard queue must not set a group id")
	}
}

func TestTakeAllDrainsAcrossBatches(t *testing.T) {
	ctx := context.Background()
	f := &fakeSQS{}
	q := &DeferredQueue{SQS: f, QueueURL: "https://sqs.local/000/deferred.fifo"}

	for i := 0; i < 12; i++ {
		_ = q.AppendSMS(ctx, domain.QueuedSMS{ID: "sms_" + strconv.Itoa(i), EnqueuedAt: time.Now()})
	}
	f.messages = append(f.messages, types.Message{Body: aws.String("not json"), ReceiptHandle: aws.String("bad")})

	if n, _ := q.CountSMS(ctx); n != 13 {
		t.Fatalf("count = %d, want 13", n)
	}

	items, err := q.TakeAllSMS(ctx)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if len(items) != 12 || items[0].ID != "sms_0" || items[11].ID != "sms_11" {
		t.Fatalf("unexpected items: %d", len(items))
	}
	if len(f.deleted) != 13 {
		t.Fatalf("expected every message deleted, got %d", len(f.deleted))
	}
}

func TestTakeAllReceiveError(t *testing.T) {
	q := &DeferredQueue{SQS: &fakeSQS{failRecv: true}, QueueURL: "q"}
	if _, err := q.TakeAllSMS(context.Background()); err == nil {
		t.Fatalf("expected receive error")
	}
}

func TestTakeAllReturnsCollectedItemsOnLaterReceiveError(t *testing.T) {
	ctx := context.Background()
	f := &fakeSQS{}
	q := &DeferredQueue{SQS: f, QueueURL: "https://sqs.local/000/deferred.fifo"}
	for i := 0; i < 12; i++ {
		_ = q.AppendSMS(ctx, domain.QueuedSMS{ID: "sms_" + strconv.Itoa(i), To: "+6140000000" + strconv.Itoa(i%10)})
	}
	f.failRecv, f.failAfter = true, 1

	items, err := q.TakeAllSMS(ctx)
	if err == nil {
		t.Fatalf("expected receive error on second batch")
	}
	if len(items) != 10 {
		t.Fatalf("first batch must come back with the error, got %d items", len(items))
	}
	if len(f.deleted) != len(items) {
		t.Fatalf("only returned items may be deleted, deleted %d returned %d", len(f.deleted), len(items))
	}
	if items[0].ID != "sms_0" || items[9].ID != "sms_9" {
		t.Fatalf("unexpected order %s..%s", items[0].ID, items[9].ID)
	}
}
