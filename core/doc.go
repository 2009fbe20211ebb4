/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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

// Package core provides the core gear for driving objects in one
// language runtime from another through a small, serializable command
// protocol.
//
// The primary type is Command: a Kind (CreateInstance,
// InvokeInstanceMethod, GetGlobalField, ...) and a positional
// payload.  Payload elements can be Primitives, References, or other
// Commands.  An Interpreter resolves nested Commands depth-first and
// left to right, and then hands the resolved Command to the Handler
// that a Registry has for its Kind.
//
// Handlers do the actual work through a Runtime, which is an adapter
// for some concrete host language runtime.  See package
// interpreters/goja for a JavaScript Runtime.
//
// Host objects that can't be represented as plain data are kept in a
// Cache and named by References.  A Reference stays valid until a
// DestructReference Command removes it.  Nothing is ever evicted
// implicitly: neither side's garbage collector knows what the other
// side is holding.
//
// Every failure is an *Error with an ErrorKind.  Faults from the
// Runtime (including panics) are converted at the Handler boundary.
//
// To use this package, make a Cache, a Runtime, and an Interpreter
// (NewInterpreter).  Then Interpret Commands.  Package sio provides
// codecs and transports that get Commands to an Interpreter.
package core
