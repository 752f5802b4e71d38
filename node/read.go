// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/edgeo-scada/uacodec"
)

// AttributeService reads and writes node attributes on a server. Results are
// returned in request order.
type AttributeService interface {
	Read(ctx context.Context, nodesToRead []uacodec.ReadValueID) ([]uacodec.DataValue, error)
	Write(ctx context.Context, nodesToWrite []uacodec.WriteValue) ([]uacodec.StatusCode, error)
}

// Read fetches the attributes of the node from svc. When the node class is
// not yet known every attribute id is requested and the class is taken from
// the response. Attributes the server reports as invalid for the node are
// left unset. With skipValue the Value attribute is not read.
func (n *GenericNode) Read(ctx context.Context, svc AttributeService, skipValue bool) error {
	id := n.NodeID()
	ids := Attributes().ValidAttributes(n.NodeClass())
	if len(ids) == 0 {
		ids = make([]uacodec.AttributeID, 0, uacodec.MaxAttributeID)
		for a := uacodec.AttributeID(1); a <= uacodec.MaxAttributeID; a++ {
			ids = append(ids, a)
		}
	}

	req := make([]uacodec.ReadValueID, 0, len(ids))
	for _, a := range ids {
		if skipValue && a == uacodec.AttributeValue {
			continue
		}
		req = append(req, uacodec.ReadValueID{NodeID: id, AttributeID: a})
	}

	results, err := svc.Read(ctx, req)
	if err != nil {
		return fmt.Errorf("read %s: %w", id.Format(), err)
	}
	if len(results) != len(req) {
		return fmt.Errorf("read %s: got %d results for %d attributes", id.Format(), len(results), len(req))
	}

	for i, r := range results {
		a := req[i].AttributeID
		if r.StatusCode == uacodec.StatusBadAttributeIdInvalid {
			continue
		}
		if r.StatusCode.IsBad() {
			if a == uacodec.AttributeNodeClass || a == uacodec.AttributeNodeID {
				return &uacodec.CodecError{StatusCode: r.StatusCode, Field: a.String(), Message: "read " + id.Format()}
			}
			n.SetDataValue(a, &results[i])
			continue
		}
		dv := results[i]
		n.SetDataValue(a, &dv)
	}
	return nil
}

// ReadValue reads the Value attribute of a variable or variable type.
func (n *GenericNode) ReadValue(ctx context.Context, svc AttributeService) (*uacodec.DataValue, error) {
	if err := Attributes().Validate(n.NodeClass(), uacodec.AttributeValue); err != nil {
		return nil, err
	}
	results, err := svc.Read(ctx, []uacodec.ReadValueID{
		{NodeID: n.NodeID(), AttributeID: uacodec.AttributeValue},
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("read %s: empty response", n.NodeID().Format())
	}
	dv := results[0]
	n.SetDataValue(uacodec.AttributeValue, &dv)
	return &dv, nil
}

// Write sends every set attribute except NodeId and NodeClass to svc and
// returns the per-attribute status codes in ascending attribute order.
func (n *GenericNode) Write(ctx context.Context, svc AttributeService) ([]uacodec.StatusCode, error) {
	id := n.NodeID()
	var req []uacodec.WriteValue
	for _, a := range n.AttributeIDs() {
		if a == uacodec.AttributeNodeID || a == uacodec.AttributeNodeClass {
			continue
		}
		dv := n.attributes[a]
		if dv == nil || dv.Value == nil {
			continue
		}
		req = append(req, uacodec.WriteValue{
			NodeID:      id,
			AttributeID: a,
			Value:       uacodec.DataValue{Value: dv.Value},
		})
	}
	if len(req) == 0 {
		return nil, nil
	}
	return svc.Write(ctx, req)
}

// ReadNodes reads the attributes of many nodes, a bounded number at a time.
// The first failure cancels the outstanding reads.
func ReadNodes(ctx context.Context, svc AttributeService, ids []uacodec.NodeID, opts ...Option) ([]*GenericNode, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	nodes := make([]*GenericNode, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			n := NewGenericNode()
			n.store(uacodec.AttributeNodeID, id)
			if err := n.Read(ctx, svc, o.skipValue); err != nil {
				return err
			}
			nodes[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	o.logger.Debug("read nodes", "count", len(nodes), "skip_value", o.skipValue)
	return nodes, nil
}
