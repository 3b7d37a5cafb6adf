package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/saiprakashgorti/KubeLoom/pkg/cerrors"
)

// Action defines the prototype of action function, function as a value
type Action func(attempt uint) error

// Model defines the schema, contains all the attributes need for retry
type Model struct {
	retry    uint
	waitTime time.Duration
	factor   float64
}

// Times is used to define the retry count
// it will run if the instance of model is not present before
func Times(retry uint) *Model {
	model := Model{}
	return model.Times(retry)
}

// Times is used to define the retry count
// it will run if the instance of model is already present
func (model *Model) Times(retry uint) *Model {
	model.retry = retry
	return model
}

// Wait is used to define the wait duration after each iteration of retry
// it will run if the instance of model is not present before
func Wait(waitTime time.Duration) *Model {
	model := Model{}
	return model.Wait(waitTime)
}

// Wait is used to define the wait duration after each iteration of retry
// it will run if the instance of model is already present
func (model *Model) Wait(waitTime time.Duration) *Model {
	model.waitTime = waitTime
	return model
}

// Backoff sets the multiplier applied to the wait duration after every
// attempt, a factor of 1 keeps the wait constant
func (model *Model) Backoff(factor float64) *Model {
	model.factor = factor
	return model
}

// Try runs the action with retries, transient api errors are retried with
// the configured wait between attempts, any other error returns immediately
func (model Model) Try(action Action) error {
	return model.TryWithContext(context.Background(), action)
}

// TryWithContext is Try with cancellation, a cancelled context interrupts
// the wait between attempts and surfaces as a timeout error
func (model Model) TryWithContext(ctx context.Context, action Action) error {
	if action == nil {
		return fmt.Errorf("no action specified")
	}

	wait := model.waitTime
	var err error
	for attempt := uint(0); attempt < model.retry; attempt++ {
		err = action(attempt)
		if err == nil || !cerrors.IsTransient(err) {
			return err
		}
		if attempt+1 == model.retry {
			break
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return cerrors.Error{ErrorCode: cerrors.ErrorTypeTimeout, Reason: fmt.Sprintf("retry interrupted, %v", ctx.Err())}
		}
		if model.factor > 1 {
			wait = time.Duration(float64(wait) * model.factor)
		}
	}
	return err
}
