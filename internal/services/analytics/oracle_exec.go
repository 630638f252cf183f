package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"MarketState/internal/domain/models"
	domsvc "MarketState/internal/domain/service"
)

// ExecOracle pipes the JSON payload to an external predictor's stdin and reads
// one JSON document from its stdout.
type ExecOracle struct {
	command []string
	timeout time.Duration
}

func NewExecOracle(command []string, timeout time.Duration) *ExecOracle {
	if len(command) == 0 {
		command = []string{"python3", "scripts/ml_predict.py"}
	}
	return &ExecOracle{command: command, timeout: timeout}
}

func (o *ExecOracle) Predict(ctx context.Context, req models.OracleRequest) (models.Prediction, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return models.Prediction{}, fmt.Errorf("marshal payload: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, o.command[0], o.command[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return models.Prediction{}, fmt.Errorf("run %s: %w: %s", strings.Join(o.command, " "), err, strings.TrimSpace(stderr.String()))
	}

	var resp models.OracleResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return models.Prediction{}, fmt.Errorf("decode oracle output: %w", err)
	}
	return resp.Prediction()
}

var _ domsvc.PredictionOracle = (*ExecOracle)(nil)
