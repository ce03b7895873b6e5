package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ceramicnetwork/go-pulse/common"
	"github.com/ceramicnetwork/go-pulse/models"
)

// CreateQueue creates the named queue if it doesn't already exist and returns its URL.
func CreateQueue(ctx context.Context, sqsClient *sqs.Client, name string) (string, error) {
	createQueueIn := sqs.CreateQueueInput{
		QueueName: aws.String(name),
		Attributes: map[string]string{
			string(types.QueueAttributeNameVisibilityTimeout): strconv.Itoa(int(models.QueueDefaultVisibilityTimeout.Seconds())),
		},
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	if createQueueOut, err := sqsClient.CreateQueue(httpCtx, &createQueueIn); err != nil {
		return "", err
	} else {
		return *createQueueOut.QueueUrl, nil
	}
}

func QueueName(env, name string) string {
	return fmt.Sprintf("pulse-%s-%s", env, name)
}
