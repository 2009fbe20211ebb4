/* Copyright 2019 Comcast Cable Communications Management, LLC
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

package sio

import (
	"encoding/json"
	"fmt"

	"github.com/jsccast/yaml"
)

// JS renders its argument as JSON or as '%#v'.
func JS(x interface{}) string {
	if x == nil {
		return "null"
	}
	js, err := json.Marshal(&x)
	if err != nil {
		return fmt.Sprintf("%#v", x)
	}
	return string(js)
}

// JShort renders its argument as JS() but only up to 73 characters.
func JShort(x interface{}) string {
	js := []byte(JS(x))
	if 70 < len(js) {
		js = js[0:70]
		js = append(js, []byte("...")...)
	}
	return string(js)
}

// Renders are the render modes for line-oriented couplings.
var Renders = []string{"json", "prettyjson", "yaml"}

func isRender(mode string) bool {
	for _, r := range Renders {
		if r == mode {
			return true
		}
	}
	return false
}

// Render renders x as "json", "prettyjson", or "yaml".  Any other
// mode is "json".  The result ends with a newline.
func Render(mode string, x interface{}) ([]byte, error) {
	var (
		bs  []byte
		err error
	)
	switch mode {
	case "prettyjson":
		bs, err = json.MarshalIndent(&x, "", "  ")
	case "yaml":
		bs, err = yaml.Marshal(&x)
	default:
		bs, err = json.Marshal(&x)
	}
	if err != nil {
		return nil, err
	}
	if n := len(bs); n == 0 || bs[n-1] != '\n' {
		bs = append(bs, '\n')
	}
	return bs, nil
}
