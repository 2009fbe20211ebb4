// Package config loads the settings for an xcall service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Comcast/xcall/interpreters"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// Config is the top-level configuration.
//
// A nil coupling section means that coupling isn't started.
type Config struct {
	// Runtime names the host runtime (see interpreters.Standard).
	Runtime string `json:"runtime" yaml:"runtime" toml:"runtime"`

	// Preload lists libraries to require before serving.
	Preload []string `json:"preload,omitempty" yaml:"preload,omitempty" toml:"preload"`

	// LibraryDir is the base directory for file:// libraries.
	LibraryDir string `json:"libraryDir" yaml:"libraryDir" toml:"libraryDir"`

	// Store is a BoltDB file for libraries.  Empty means an
	// in-memory store.
	Store string `json:"store,omitempty" yaml:"store,omitempty" toml:"store"`

	// MaxDepth limits Command nesting.
	MaxDepth int `json:"maxDepth" yaml:"maxDepth" toml:"maxDepth"`

	// Codec is "json" or "cbor".
	Codec string `json:"codec" yaml:"codec" toml:"codec"`

	Verbose     bool `json:"verbose" yaml:"verbose" toml:"verbose"`
	Development bool `json:"development" yaml:"development" toml:"development"`

	Stdio     *Stdio     `json:"stdio,omitempty" yaml:"stdio,omitempty" toml:"stdio"`
	TCP       *TCP       `json:"tcp,omitempty" yaml:"tcp,omitempty" toml:"tcp"`
	WebSocket *WebSocket `json:"websocket,omitempty" yaml:"websocket,omitempty" toml:"websocket"`
	HTTP      *HTTP      `json:"http,omitempty" yaml:"http,omitempty" toml:"http"`
	MQTT      *MQTT      `json:"mqtt,omitempty" yaml:"mqtt,omitempty" toml:"mqtt"`
}

type Stdio struct {
	// Render is one of json, prettyjson, yaml.
	Render string `json:"render" yaml:"render" toml:"render"`
}

type TCP struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	// Framed switches from line-delimited JSON to length-prefixed
	// frames in the configured codec.
	Framed bool `json:"framed" yaml:"framed" toml:"framed"`
}

type WebSocket struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	Path string `json:"path" yaml:"path" toml:"path"`
}

type HTTP struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
}

type MQTT struct {
	Broker       string `json:"broker" yaml:"broker" toml:"broker"`
	ClientID     string `json:"clientId" yaml:"clientId" toml:"clientId"`
	Username     string `json:"username,omitempty" yaml:"username,omitempty" toml:"username"`
	Password     string `json:"password,omitempty" yaml:"password,omitempty" toml:"password"`
	RequestTopic string `json:"requestTopic" yaml:"requestTopic" toml:"requestTopic"`
	ReplyTopic   string `json:"replyTopic" yaml:"replyTopic" toml:"replyTopic"`
	QoS          byte   `json:"qos" yaml:"qos" toml:"qos"`
	CleanSession bool   `json:"cleanSession" yaml:"cleanSession" toml:"cleanSession"`
	KeepAlive    int    `json:"keepAlive" yaml:"keepAlive" toml:"keepAlive"`
}

// Default returns the default configuration, which uses the goja
// runtime.  Validate adds stdio if no coupling is configured.
func Default() *Config {
	return &Config{
		Runtime:    "goja",
		LibraryDir: ".",
		MaxDepth:   64,
		Codec:      "json",
	}
}

// DefaultMQTT returns MQTT settings with defaults filled in.
func DefaultMQTT() *MQTT {
	return &MQTT{
		Broker:       "tcp://localhost:1883",
		ClientID:     "xcall",
		RequestTopic: "xcall/requests",
		ReplyTopic:   "xcall/responses",
		QoS:          1,
		CleanSession: true,
		KeepAlive:    30,
	}
}

// fill copies defaults into m's empty fields.  QoS 0 is a real
// value, so it stays.
func (m *MQTT) fill() {
	d := DefaultMQTT()
	if m.Broker == "" {
		m.Broker = d.Broker
	}
	if m.ClientID == "" {
		m.ClientID = d.ClientID
	}
	if m.RequestTopic == "" {
		m.RequestTopic = d.RequestTopic
	}
	if m.ReplyTopic == "" {
		m.ReplyTopic = d.ReplyTopic
	}
	if m.KeepAlive == 0 {
		m.KeepAlive = d.KeepAlive
	}
}

// Load reads the given file over Default().  The format comes from
// the file's extension: .yaml/.yml, .toml, or .json.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", filename, err)
	}
	c := Default()
	if err = c.Parse(filepath.Ext(filename), data); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", filename, err)
	}
	if err = c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return c, nil
}

// Parse decodes data in the format named by ext into c.
func (c *Config) Parse(ext string, data []byte) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.UnmarshalStrict(data, c)
	case ".toml":
		_, err := toml.Decode(string(data), c)
		return err
	case ".json":
		return json.Unmarshal(data, c)
	default:
		return fmt.Errorf("unknown config format '%s'", ext)
	}
}

var renders = map[string]bool{
	"json":       true,
	"prettyjson": true,
	"yaml":       true,
}

// Validate protests bad values and fills in defaults.
func (c *Config) Validate() error {
	if c.Stdio == nil && c.TCP == nil && c.WebSocket == nil && c.HTTP == nil && c.MQTT == nil {
		c.Stdio = &Stdio{}
	}
	if c.Stdio != nil && c.Stdio.Render == "" {
		c.Stdio.Render = "json"
	}
	if _, err := interpreters.Find(c.Runtime); err != nil {
		return err
	}
	switch c.Codec {
	case "json", "cbor":
	default:
		return fmt.Errorf("unknown codec '%s'", c.Codec)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("negative maxDepth %d", c.MaxDepth)
	}
	if c.Stdio != nil && !renders[c.Stdio.Render] {
		return fmt.Errorf("unknown stdio render '%s'", c.Stdio.Render)
	}
	if c.TCP != nil && c.TCP.Addr == "" {
		return fmt.Errorf("tcp needs an addr")
	}
	if c.WebSocket != nil {
		if c.WebSocket.Addr == "" {
			return fmt.Errorf("websocket needs an addr")
		}
		if c.WebSocket.Path == "" {
			c.WebSocket.Path = "/ws"
		}
	}
	if c.HTTP != nil && c.HTTP.Addr == "" {
		return fmt.Errorf("http needs an addr")
	}
	if c.MQTT != nil {
		c.MQTT.fill()
		if 2 < c.MQTT.QoS {
			return fmt.Errorf("bad mqtt qos %d", c.MQTT.QoS)
		}
	}
	return nil
}
