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
	"github.com/edgeo-scada/uacodec"
	"github.com/edgeo-scada/uacodec/complextype"
)

// RolePermissionType is the structure held by the RolePermissions and
// UserRolePermissions attributes.
var RolePermissionType = complextype.MustSchema("RolePermissionType", complextype.Structure,
	[]complextype.Field{
		{Name: "RoleId", Order: 1, WireType: uacodec.TypeNodeID, ValueRank: uacodec.ValueRankScalar},
		{Name: "Permissions", Order: 2, WireType: uacodec.TypeUInt32, ValueRank: uacodec.ValueRankScalar},
	},
	complextype.WithTypeID(uacodec.NewExpandedNodeID(uacodec.NewNumericNodeID(0, 96))),
	complextype.WithBinaryEncodingID(uacodec.NewExpandedNodeID(uacodec.NewNumericNodeID(0, 128))),
	complextype.WithXMLEncodingID(uacodec.NewExpandedNodeID(uacodec.NewNumericNodeID(0, 127))),
)

// NewRolePermission returns a RolePermissionType record.
func NewRolePermission(role uacodec.NodeID, permissions uint32) *complextype.Record {
	return RolePermissionType.New().
		MustSet("RoleId", role).
		MustSet("Permissions", permissions)
}

func newRolePermission() uacodec.Encodeable {
	return RolePermissionType.New()
}

// rolePermissions converts a decoded array, reporting an empty one as unset.
func rolePermissions(v any) any {
	elems, _ := v.([]uacodec.Encodeable)
	if len(elems) == 0 {
		return nil
	}
	out := make([]*complextype.Record, len(elems))
	for i, e := range elems {
		out[i], _ = e.(*complextype.Record)
	}
	return out
}
