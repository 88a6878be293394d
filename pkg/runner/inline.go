package runner

import (
	"context"
	"fmt"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/schema"
)

func (r *Runner) runInline(
	ctx context.Context,
	execute models.ExecuteFunc,
	params map[string]any,
	execCtx *models.ExecutionContext,
) (result map[string]any, err error) {
	if execute == nil {
		return nil, &schema.ConfigurationError{
			Key:     execCtx.ComponentRef,
			Message: "inline component has no execute function",
		}
	}

	// A panicking component body must not take the scheduler down with it.
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "Component panicked",
				"component_ref", execCtx.ComponentRef, "panic", rec)

			result = nil
			err = fmt.Errorf("component %s panicked: %v", execCtx.ComponentRef, rec)
		}
	}()

	return execute(ctx, params, execCtx)
}
