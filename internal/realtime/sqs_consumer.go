package realtime

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/sirupsen/logrus"
)

// SQSAPI is the subset of the SQS client used by the consumer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type SQSConsumer struct {
	sqsClient SQSAPI
	queueURL  string
	waitTime  int32
	logger    *logrus.Logger
}

func NewSQSConsumer(client SQSAPI, queueURL string, logger *logrus.Logger) *SQSConsumer {
	return &SQSConsumer{
		sqsClient: client,
		queueURL:  queueURL,
		waitTime:  20,
		logger:    logger,
	}
}

func (c *SQSConsumer) Name() string { return "sqs" }

func (c *SQSConsumer) Run(ctx context.Context, sink Sink) {
	c.logger.WithField("queue", c.queueURL).Info("SQS consumer listening")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("SQS consumer stopped")
			return
		default:
		}

		if !c.poll(ctx, sink) {
			return
		}
	}
}

// poll receives one batch. It returns false once ctx is done.
func (c *SQSConsumer) poll(ctx context.Context, sink Sink) bool {
	result, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     c.waitTime,
		VisibilityTimeout:   60,
	})
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.logger.WithError(err).Warn("SQS consumer: receive failed")
		return sleep(ctx, 5*time.Second)
	}

	for _, message := range result.Messages {
		if message.Body == nil {
			c.deleteMessage(ctx, message.ReceiptHandle)
			continue
		}
		var messageID string
		if message.MessageId != nil {
			messageID = *message.MessageId
		}
		if err := publishTo(ctx, sink, c.Name(), messageID, []byte(*message.Body)); err != nil {
			// Left on the queue; redelivered after the visibility timeout.
			c.logger.WithError(err).Warn("SQS consumer: publish failed")
			continue
		}
		c.deleteMessage(ctx, message.ReceiptHandle)
	}
	return ctx.Err() == nil
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		c.logger.Warn("SQS consumer: empty receipt handle, cannot delete message")
		return
	}
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		c.logger.WithError(err).Warn("SQS consumer: delete failed")
	}
}
