package lightningd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	lightning "github.com/fiatjaf/lightningd-gjson-rpc"
)

// defaultCallTimeout bounds calls made without a context deadline. lightningd
// can take a while to answer pay and fundchannel.
const defaultCallTimeout = 2 * time.Minute

// rpcClient talks JSON-RPC 2.0 to lightningd over its unix socket, opening a
// new connection for every call.
type rpcClient struct {
	socketPath string
}

func newRPCClient(socketPath string) *rpcClient {
	return &rpcClient{socketPath: socketPath}
}

type rpcResult struct {
	raw string
	err error
}

// call sends a request with named params and decodes the result into out.
// Socket errors are reported as domain.ErrNotConnected, errors returned by
// lightningd as *domain.CommandFailedError.
func (c *rpcClient) call(ctx context.Context, method string, params, out any) error {
	named, err := namedParams(params)
	if err != nil {
		return err
	}

	timeout := defaultCallTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return fmt.Errorf("%w: %s", domain.ErrNotConnected, context.DeadlineExceeded)
		}
	}
	client := &lightning.Client{Path: c.socketPath, CallTimeout: timeout}

	done := make(chan rpcResult, 1)
	go func() {
		res, err := client.CallNamed(method, named...)
		done <- rpcResult{raw: res.Raw, err: err}
	}()

	var res rpcResult
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s", domain.ErrNotConnected, ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return toBackendError(res.err)
	}

	if out == nil || res.raw == "" {
		return nil
	}
	return decodeResult(method, json.RawMessage(res.raw), out)
}

// toBackendError keeps the message of errors returned by lightningd, anything
// else means the socket is unusable.
func toBackendError(err error) error {
	var cmdErr lightning.ErrorCommand
	if errors.As(err, &cmdErr) {
		return domain.CommandFailed("%s", cmdErr.Message)
	}
	var cmdErrPtr *lightning.ErrorCommand
	if errors.As(err, &cmdErrPtr) && cmdErrPtr != nil {
		return domain.CommandFailed("%s", cmdErrPtr.Message)
	}
	return fmt.Errorf("%w: %s", domain.ErrNotConnected, err)
}

// namedParams flattens params into the key, value list CallNamed expects,
// sorted by key.
func namedParams(params any) ([]any, error) {
	if params == nil {
		return nil, nil
	}
	m, ok := params.(map[string]any)
	if !ok {
		return nil, domain.CommandFailed("invalid params %T", params)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	named := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		named = append(named, k, m[k])
	}
	return named, nil
}

func decodeResult(method string, result json.RawMessage, out any) error {
	if raw, ok := out.(*any); ok {
		dec := json.NewDecoder(bytes.NewReader(result))
		dec.UseNumber()
		if err := dec.Decode(raw); err != nil {
			return domain.CommandFailed("invalid %s response: %s", method, err)
		}
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return domain.CommandFailed("invalid %s response: %s", method, err)
	}
	return nil
}
