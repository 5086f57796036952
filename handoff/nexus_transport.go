package handoff

import (
	"context"
	"fmt"

	"github.com/nexus-rpc/sdk-go/nexus"
)

// handoffOperation is the Nexus operation a receiving provider service
// exposes to accept a HandoffMemo from a peer running in a different
// process. Cross-process handoffs are opt-in: most deployments run every
// provider adapter in the same process and never touch this file.
var handoffOperation = nexus.NewOperationReference[HandoffMemo, HandoffAck]("agentfleet.handoff.transfer")

// HandoffAck is the receiving service's acknowledgement of a transferred
// memo.
type HandoffAck struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// NexusTransport sends HandoffMemo values to a remote provider service
// over Nexus when the target provider in a handoff is hosted out of
// process (for example, a provider adapter deployed as its own Temporal
// Nexus-exposed service rather than linked into this binary).
type NexusTransport struct {
	client *nexus.HTTPClient
}

// NewNexusTransport constructs a transport that calls serviceBaseURL to
// deliver handoff memos.
func NewNexusTransport(serviceBaseURL, service string) (*NexusTransport, error) {
	c, err := nexus.NewHTTPClient(nexus.HTTPClientOptions{
		BaseURL: serviceBaseURL,
		Service: service,
	})
	if err != nil {
		return nil, fmt.Errorf("handoff: build nexus client: %w", err)
	}
	return &NexusTransport{client: c}, nil
}

// Send delivers memo to the remote provider service and waits for its
// acknowledgement. The remote end is expected to start the executor's
// tool/conversation loop against memo.To using the transferred state.
func (t *NexusTransport) Send(ctx context.Context, memo HandoffMemo) (HandoffAck, error) {
	result, err := nexus.ExecuteOperation(ctx, t.client, handoffOperation, memo, nexus.ExecuteOperationOptions{})
	if err != nil {
		return HandoffAck{}, fmt.Errorf("handoff: nexus transfer to %s: %w", memo.To, err)
	}
	return result, nil
}
