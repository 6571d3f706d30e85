package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

type queueClient interface {
	Create(ctx context.Context, options *azqueue.CreateOptions) (azqueue.CreateResponse, error)
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
	DequeueMessage(ctx context.Context, o *azqueue.DequeueMessageOptions) (azqueue.DequeueMessagesResponse, error)
	DeleteMessage(ctx context.Context, messageID string, popReceipt string, o *azqueue.DeleteMessageOptions) (azqueue.DeleteMessageResponse, error)
}

// RepairRequest asks for one user's account index entry to be re-derived.
type RepairRequest struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	RequestedAt int64  `json:"requestedAt"`

	messageID  string
	popReceipt string
	// Attempts is how many times the message has been dequeued, including this one.
	Attempts int64 `json:"-"`
}

// RepairQueue carries index repair requests between the project manager and
// the index updater.
type RepairQueue struct {
	queue queueClient
	now   func() time.Time
}

// NewRepairQueue creates a RepairQueue from the given connection string.
func NewRepairQueue(connStr, queueName string) (*RepairQueue, error) {
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &RepairQueue{queue: q, now: time.Now}, nil
}

// CreateQueue creates the backing queue, ignoring one that already exists.
func (r *RepairQueue) CreateQueue(ctx context.Context) error {
	if _, err := r.queue.Create(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
			return err
		}
	}
	return nil
}

// RequestRepair enqueues one repair request per username.
func (r *RepairQueue) RequestRepair(ctx context.Context, usernames ...string) error {
	var errs []error
	for _, u := range usernames {
		data, err := sonic.ConfigStd.Marshal(RepairRequest{
			ID:          uuid.NewString(),
			Username:    u,
			RequestedAt: r.now().UnixMilli(),
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := r.queue.EnqueueMessage(ctx, string(data), nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dequeue retrieves a single repair request, or nil when the queue is empty.
func (r *RepairQueue) Dequeue(ctx context.Context) (*RepairRequest, error) {
	resp, err := r.queue.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	msg := resp.Messages[0]
	req := &RepairRequest{}
	if msg.MessageText != nil {
		if err := sonic.ConfigStd.UnmarshalFromString(*msg.MessageText, req); err != nil {
			req.Username = ""
		}
	}
	if msg.MessageID != nil {
		req.messageID = *msg.MessageID
	}
	if msg.PopReceipt != nil {
		req.popReceipt = *msg.PopReceipt
	}
	if msg.DequeueCount != nil {
		req.Attempts = *msg.DequeueCount
	}
	return req, nil
}

// Ack removes a processed request from the queue.
func (r *RepairQueue) Ack(ctx context.Context, req *RepairRequest) error {
	_, err := r.queue.DeleteMessage(ctx, req.messageID, req.popReceipt, nil)
	return err
}
