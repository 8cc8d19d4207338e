package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/callbackurls/logger"
	"github.com/mohitkumar/callbackurls/model"
	"github.com/mohitkumar/callbackurls/persistence"
	"github.com/mohitkumar/callbackurls/sink"
	"github.com/mohitkumar/callbackurls/util"
	"go.uber.org/zap"
)

const SIGNAL_QUEUE_KEY string = "SIGNALS"
const COMPLETED_KEY string = "COMPLETED"

const defaultCompletionTTL = 7 * 24 * time.Hour

var _ sink.Sink = new(redisSignalQueue)

// redisSignalQueue hands signals to an external workflow engine through a Redis
// list. A task token accepts heartbeats until its first success or failure.
type redisSignalQueue struct {
	*baseDao
	completionTTL  time.Duration
	encoderDecoder util.EncoderDecoder[model.Signal]
}

func NewRedisSignalQueue(conf Config) *redisSignalQueue {
	ttl := defaultCompletionTTL
	if conf.CompletionTTL > 0 {
		ttl = time.Duration(conf.CompletionTTL) * time.Second
	}
	return &redisSignalQueue{
		baseDao:        newBaseDao(conf),
		completionTTL:  ttl,
		encoderDecoder: util.NewJsonEncoderDecoder[model.Signal](),
	}
}

func (q *redisSignalQueue) SendSuccess(ctx context.Context, token string, output string) error {
	return q.complete(ctx, model.Signal{Kind: model.SIGNAL_SUCCESS, Token: token, Output: output})
}

func (q *redisSignalQueue) SendFailure(ctx context.Context, token string, errorCode string, cause string) error {
	return q.complete(ctx, model.Signal{Kind: model.SIGNAL_FAILURE, Token: token, Error: errorCode, Cause: cause})
}

func (q *redisSignalQueue) SendHeartbeat(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty task token", sink.ErrInvalidToken)
	}
	done, err := q.redisClient.Exists(ctx, q.completedKey(token)).Result()
	if err != nil {
		logger.Error("error while checking task completion", zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if done > 0 {
		return fmt.Errorf("%w: task already completed", sink.ErrTaskDoesNotExist)
	}
	return q.push(ctx, model.Signal{Kind: model.SIGNAL_HEARTBEAT, Token: token})
}

func (q *redisSignalQueue) complete(ctx context.Context, signal model.Signal) error {
	if signal.Token == "" {
		return fmt.Errorf("%w: empty task token", sink.ErrInvalidToken)
	}
	key := q.completedKey(signal.Token)
	ok, err := q.redisClient.SetNX(ctx, key, string(signal.Kind), q.completionTTL).Result()
	if err != nil {
		logger.Error("error while marking task complete", zap.String("key", key), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if !ok {
		return fmt.Errorf("%w: task already completed", sink.ErrTaskAlreadyCompleted)
	}
	if err := q.push(ctx, signal); err != nil {
		_ = q.Release(ctx, signal.Token)
		return err
	}
	return nil
}

// Release clears the completion marker of token so a success or failure can
// be sent for it again.
func (q *redisSignalQueue) Release(ctx context.Context, token string) error {
	key := q.completedKey(token)
	if err := q.redisClient.Del(ctx, key).Err(); err != nil {
		logger.Error("error while releasing completion marker", zap.String("key", key), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (q *redisSignalQueue) push(ctx context.Context, signal model.Signal) error {
	data, err := q.encoderDecoder.Encode(signal)
	if err != nil {
		return err
	}
	queueName := q.getNamespaceKey(SIGNAL_QUEUE_KEY)
	if err := q.redisClient.LPush(ctx, queueName, data).Err(); err != nil {
		logger.Error("error while push to redis list", zap.String("queue", queueName), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

// Pop removes up to batchSize signals in the order they were sent.
func (q *redisSignalQueue) Pop(ctx context.Context, batchSize int) ([]model.Signal, error) {
	queueName := q.getNamespaceKey(SIGNAL_QUEUE_KEY)
	res, err := q.redisClient.RPopCount(ctx, queueName, batchSize).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.EmptyQueueError{}
		}
		logger.Error("error while pop from redis list", zap.String("queue", queueName), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	signals := make([]model.Signal, 0, len(res))
	for _, item := range res {
		signal, err := q.encoderDecoder.Decode([]byte(item))
		if err != nil {
			return nil, err
		}
		signals = append(signals, *signal)
	}
	return signals, nil
}

// completedKey hashes the token, which can be kilobytes long.
func (q *redisSignalQueue) completedKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return q.getNamespaceKey(COMPLETED_KEY, hex.EncodeToString(sum[:]))
}
