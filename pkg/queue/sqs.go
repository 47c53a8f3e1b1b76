package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQS implements Service on Amazon SQS.
type SQS struct {
	client *sqs.Client
}

// NewSQS creates an SQS-backed queue service.
func NewSQS(client *sqs.Client) *SQS {
	return &SQS{client: client}
}

func (s *SQS) CreateQueue(ctx context.Context, name string, tags map[string]string) (string, error) {
	out, err := s.client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
		Tags:      tags,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create queue %s: %w", name, err)
	}
	return aws.ToString(out.QueueUrl), nil
}

func (s *SQS) DeleteQueue(ctx context.Context, url string) error {
	_, err := s.client.DeleteQueue(ctx, &sqs.DeleteQueueInput{QueueUrl: aws.String(url)})
	if err != nil {
		return fmt.Errorf("failed to delete queue %s: %w", url, err)
	}
	return nil
}

func (s *SQS) QueueURL(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		var notFound *sqstypes.QueueDoesNotExist
		if errors.As(err, &notFound) {
			return "", ErrQueueNotFound
		}
		return "", fmt.Errorf("failed to resolve queue %s: %w", name, err)
	}
	return aws.ToString(out.QueueUrl), nil
}

func (s *SQS) ListQueues(ctx context.Context, prefix string) ([]QueueInfo, error) {
	var infos []QueueInfo
	paginator := sqs.NewListQueuesPaginator(s.client, &sqs.ListQueuesInput{
		QueueNamePrefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list queues: %w", err)
		}
		for _, url := range page.QueueUrls {
			info, err := s.describeQueue(ctx, url)
			if err != nil {
				return nil, err
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

func (s *SQS) describeQueue(ctx context.Context, url string) (QueueInfo, error) {
	out, err := s.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(url),
		AttributeNames: []sqstypes.QueueAttributeName{
			sqstypes.QueueAttributeNameCreatedTimestamp,
			sqstypes.QueueAttributeNameApproximateNumberOfMessages,
		},
	})
	if err != nil {
		return QueueInfo{}, fmt.Errorf("failed to describe queue %s: %w", url, err)
	}
	info := QueueInfo{Name: nameFromURL(url), URL: url}
	if v, ok := out.Attributes[string(sqstypes.QueueAttributeNameCreatedTimestamp)]; ok {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			info.CreatedAt = time.Unix(secs, 0).UTC()
		}
	}
	if v, ok := out.Attributes[string(sqstypes.QueueAttributeNameApproximateNumberOfMessages)]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			info.ApproxMessages = n
		}
	}
	return info, nil
}

func (s *SQS) SetRedrive(ctx context.Context, sourceURL, dlqURL string, maxReceive int) error {
	arnOut, err := s.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(dlqURL),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return fmt.Errorf("failed to resolve DLQ ARN: %w", err)
	}
	policy, err := json.Marshal(map[string]string{
		"deadLetterTargetArn": arnOut.Attributes[string(sqstypes.QueueAttributeNameQueueArn)],
		"maxReceiveCount":     strconv.Itoa(maxReceive),
	})
	if err != nil {
		return err
	}
	_, err = s.client.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
		QueueUrl: aws.String(sourceURL),
		Attributes: map[string]string{
			string(sqstypes.QueueAttributeNameRedrivePolicy): string(policy),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to set redrive policy: %w", err)
	}
	return nil
}

func (s *SQS) Send(ctx context.Context, url, body string, attrs map[string]string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(body),
	}
	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]sqstypes.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			input.MessageAttributes[k] = sqstypes.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}
	if _, err := s.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (s *SQS) Receive(ctx context.Context, url string, max int, wait time.Duration) ([]Message, error) {
	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(url),
		MaxNumberOfMessages:   int32(max),
		WaitTimeSeconds:       int32(wait / time.Second),
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}
	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{
			MessageID: aws.ToString(m.MessageId),
			Receipt:   aws.ToString(m.ReceiptHandle),
			Body:      aws.ToString(m.Body),
		}
		if len(m.MessageAttributes) > 0 {
			msg.Attributes = make(map[string]string, len(m.MessageAttributes))
			for k, v := range m.MessageAttributes {
				msg.Attributes[k] = aws.ToString(v.StringValue)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *SQS) DeleteMessage(ctx context.Context, url, receipt string) error {
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func nameFromURL(url string) string {
	for i := len(url) - 1; i >= 0; i-- {
		if url[i] == '/' {
			return url[i+1:]
		}
	}
	return url
}
