package queue

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/abevier/go-sqs/gosqs"

	"github.com/ceramicnetwork/go-pulse/models"
)

var _ models.QueuePublisher = &Publisher{}

type Publisher struct {
	queueUrl  string
	publisher *gosqs.SQSPublisher
}

func NewPublisher(ctx context.Context, sqsClient *sqs.Client, queueName string) (*Publisher, error) {
	// Create the queue if it didn't already exist
	if queueUrl, err := CreateQueue(ctx, sqsClient, queueName); err != nil {
		return nil, err
	} else {
		return &Publisher{
			queueUrl,
			gosqs.NewPublisher(
				sqsClient,
				queueUrl,
				models.QueueMaxLinger,
			)}, nil
	}
}

func (p Publisher) GetUrl() string {
	return p.queueUrl
}

func (p Publisher) SendMessage(ctx context.Context, event any) (string, error) {
	if eventBody, err := json.Marshal(event); err != nil {
		return "", err
	} else if msgId, err := p.publisher.SendMessage(ctx, string(eventBody)); err != nil {
		return "", err
	} else {
		return msgId, nil
	}
}
