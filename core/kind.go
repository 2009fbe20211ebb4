/* Copyright 2018 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"encoding/json"
	"fmt"
)

// Kind is the operation a Command requests.
//
// The set of kinds is closed.  Adding a kind means adding a constant
// here, an entry in KindSpecs, and a Handler in StandardHandlers.
type Kind uint8

const (
	CreateInstance Kind = iota
	InvokeInstanceMethod
	InvokeStaticMethod
	InvokeGlobalMethod
	GetInstanceField
	SetInstanceField
	GetStaticField
	SetStaticField
	GetGlobalField
	GetType
	ArrayGetItem
	ArraySetItem
	ArrayGetSize
	DestructReference
	Cast

	// NumKinds is the number of kinds.  Not a kind.
	NumKinds
)

// KindSpec describes the payload convention for a Kind.
type KindSpec struct {
	Kind Kind `json:"-" yaml:"-"`

	Name string `json:"name" yaml:"name"`

	// MinArity is the minimum payload length.
	MinArity int `json:"minArity" yaml:"minArity"`

	// MaxArity is the maximum payload length.  Negative means
	// variadic.
	MaxArity int `json:"maxArity" yaml:"maxArity"`

	// Payload is a short signature like "instance, method, args...".
	Payload string `json:"payload" yaml:"payload"`

	// Returns summarizes the result.
	Returns string `json:"returns" yaml:"returns"`

	// Doc is Markdown.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`
}

// KindSpecs is indexed by Kind.
var KindSpecs = [NumKinds]KindSpec{
	CreateInstance: {
		Name:     "CreateInstance",
		MinArity: 1,
		MaxArity: -1,
		Payload:  "type, args...",
		Returns:  "Reference",
		Doc: "Constructs an instance of `type` with the given constructor " +
			"arguments.  `type` is a type name or a reference to a type " +
			"descriptor obtained with `GetType`.",
	},
	InvokeInstanceMethod: {
		Name:     "InvokeInstanceMethod",
		MinArity: 2,
		MaxArity: -1,
		Payload:  "instance, method, args...",
		Returns:  "value",
		Doc:      "Calls `method` on the referenced instance.",
	},
	InvokeStaticMethod: {
		Name:     "InvokeStaticMethod",
		MinArity: 2,
		MaxArity: -1,
		Payload:  "type, method, args...",
		Returns:  "value",
		Doc:      "Calls `method` on a type.",
	},
	InvokeGlobalMethod: {
		Name:     "InvokeGlobalMethod",
		MinArity: 1,
		MaxArity: -1,
		Payload:  "dottedPath, args...",
		Returns:  "value",
		Doc: "Calls the function at `dottedPath` (for example `Math.max`). " +
			"Everything before the last segment is the receiver.",
	},
	GetInstanceField: {
		Name:     "GetInstanceField",
		MinArity: 2,
		MaxArity: 2,
		Payload:  "instance, field",
		Returns:  "value",
	},
	SetInstanceField: {
		Name:     "SetInstanceField",
		MinArity: 3,
		MaxArity: 3,
		Payload:  "instance, field, value",
		Returns:  "nothing",
	},
	GetStaticField: {
		Name:     "GetStaticField",
		MinArity: 2,
		MaxArity: 2,
		Payload:  "type, field",
		Returns:  "value",
	},
	SetStaticField: {
		Name:     "SetStaticField",
		MinArity: 3,
		MaxArity: 3,
		Payload:  "type, field, value",
		Returns:  "nothing",
	},
	GetGlobalField: {
		Name:     "GetGlobalField",
		MinArity: 1,
		MaxArity: -1,
		Payload:  "segment...",
		Returns:  "value",
		Doc: "Walks the global namespace one segment at a time.  A single " +
			"dotted string is split on `.`.  Resolution stops at the " +
			"first missing segment.",
	},
	GetType: {
		Name:     "GetType",
		MinArity: 1,
		MaxArity: 1,
		Payload:  "name",
		Returns:  "Reference",
		Doc:      "Resolves a type name to a type descriptor.",
	},
	ArrayGetItem: {
		Name:     "ArrayGetItem",
		MinArity: 2,
		MaxArity: -1,
		Payload:  "array, index...",
		Returns:  "value",
		Doc:      "More than one index addresses nested (multi-dimensional) arrays.",
	},
	ArraySetItem: {
		Name:     "ArraySetItem",
		MinArity: 3,
		MaxArity: -1,
		Payload:  "array, value, index...",
		Returns:  "nothing",
		Doc:      "An out-of-range index fails without mutating the array.",
	},
	ArrayGetSize: {
		Name:     "ArrayGetSize",
		MinArity: 1,
		MaxArity: 1,
		Payload:  "array",
		Returns:  "integer",
	},
	DestructReference: {
		Name:     "DestructReference",
		MinArity: 1,
		MaxArity: 1,
		Payload:  "reference",
		Returns:  "nothing",
		Doc:      "Removes the reference.  Destructing twice is an error.",
	},
	Cast: {
		Name:     "Cast",
		MinArity: 0,
		MaxArity: -1,
		Payload:  "...",
		Returns:  "error",
		Doc:      "Always fails with `UnsupportedOperation`: a dynamically typed host has nothing to cast to.",
	},
}

func init() {
	for i := range KindSpecs {
		KindSpecs[i].Kind = Kind(i)
	}
}

// Valid reports whether k is one of the enumerated kinds.
func (k Kind) Valid() bool {
	return k < NumKinds
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return KindSpecs[k].Name
}

// Spec returns the KindSpec for k.  Panics if k isn't Valid.
func (k Kind) Spec() *KindSpec {
	return &KindSpecs[k]
}

// ParseKind finds the Kind with the given name.
func ParseKind(name string) (Kind, error) {
	for i := range KindSpecs {
		if KindSpecs[i].Name == name {
			return Kind(i), nil
		}
	}
	return 0, Malformed("unknown kind %q", name)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, Malformed("unknown kind %d", uint8(k))
	}
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(bs []byte) error {
	var s string
	if err := json.Unmarshal(bs, &s); err != nil {
		return err
	}
	x, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = x
	return nil
}
