package sqsqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"jobnotify/internal/domain"
)

// API is the subset of the SQS client used by DeferredQueue.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	GetQueueAttributes(ctx context.Context, in *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// groupID keeps a FIFO queue strictly ordered across all deferred sends.
const groupID = "deferred-sms"

// DeferredQueue stores deferred SMS sends in an SQS queue. With a .fifo queue
// items come back in insertion order; a standard queue gives best-effort order.
type DeferredQueue struct {
	SQS      API
	QueueURL string

	WaitTimeSeconds   int32
	VisibilityTimeout int32
}

func (q *DeferredQueue) fifo() bool { return strings.HasSuffix(q.QueueURL, ".fifo") }

func (q *DeferredQueue) AppendSMS(ctx context.Context, item domain.QueuedSMS) error {
	body, err := json.Marshal(item)
	if err != nil {
		return err
	}
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.QueueURL),
		MessageBody: aws.String(string(body)),
	}
	if q.fifo() {
		in.MessageGroupId = aws.String(groupID)
		in.MessageDeduplicationId = aws.String(item.ID)
	}
	_, err = q.SQS.SendMessage(ctx, in)
	return err
}

// TakeAllSMS receives until the queue reports empty, deleting each message as
// it is collected. Undecodable bodies are deleted and skipped. On error the
// items already collected are returned with it; they are gone from the queue,
// so the caller owns them.
func (q *DeferredQueue) TakeAllSMS(ctx context.Context) ([]domain.QueuedSMS, error) {
	var out []domain.QueuedSMS
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := q.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(q.QueueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     q.WaitTimeSeconds,
			VisibilityTimeout:   q.visibility(),
		})
		if err != nil {
			return out, fmt.Errorf("sqs receive deferred: %w", err)
		}
		if len(res.Messages) == 0 {
			return out, nil
		}
		for _, m := range res.Messages {
			item, ok := decode(m)
			if ok {
				out = append(out, item)
			} else {
				slog.Warn("sqs deferred message undecodable, dropping", "message_id", aws.ToString(m.MessageId))
			}
			if _, err := q.SQS.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(q.QueueURL),
				ReceiptHandle: m.ReceiptHandle,
			}); err != nil {
				return out, fmt.Errorf("sqs delete deferred: %w", err)
			}
		}
	}
}

func (q *DeferredQueue) CountSMS(ctx context.Context) (int, error) {
	res, err := q.SQS.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.QueueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return 0, err
	}
	raw := res.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// Ping checks the queue is reachable.
func (q *DeferredQueue) Ping(ctx context.Context) error {
	_, err := q.SQS.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.QueueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	return err
}

func (q *DeferredQueue) visibility() int32 {
	if q.VisibilityTimeout <= 0 {
		return 60
	}
	return q.VisibilityTimeout
}

func decode(m types.Message) (domain.QueuedSMS, bool) {
	if m.Body == nil {
		return domain.QueuedSMS{}, false
	}
	var item domain.QueuedSMS
	if err := json.Unmarshal([]byte(*m.Body), &item); err != nil {
		return domain.QueuedSMS{}, false
	}
	return item, true
}
