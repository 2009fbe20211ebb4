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
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTT is a Coupling for an MQTT client.
//
// Requests arrive on RequestTopic in the Transmitter's Codec.  Each
// Response is published to the Request's ReplyTo topic, or to
// ReplyTopic if the Request doesn't have one.  Requests are handled
// in order of arrival.
type MQTT struct {
	Broker       string
	ClientID     string
	Username     string
	Password     string
	RequestTopic string
	ReplyTopic   string
	QoS          byte
	CleanSession bool
	KeepAlive    time.Duration

	// Quiesce is the disconnection quiescence in milliseconds.
	Quiesce uint

	// InTimeout limits how long an in-bound message waits to be
	// queued.
	InTimeout time.Duration

	// Client is created by Start if it's nil.
	Client mqtt.Client

	Transmitter *Transmitter

	incoming   chan mqtt.Message
	disconnect sync.Once

	stopper
}

func NewMQTT(t *Transmitter) *MQTT {
	return &MQTT{
		Broker:       "tcp://localhost:1883",
		ClientID:     "xcall",
		RequestTopic: "xcall/requests",
		ReplyTopic:   "xcall/responses",
		QoS:          1,
		CleanSession: true,
		KeepAlive:    30 * time.Second,
		Quiesce:      100,
		InTimeout:    time.Second,
		Transmitter:  t,
	}
}

func (c *MQTT) Name() string {
	return "mqtt"
}

func (c *MQTT) logger() *zap.Logger {
	return orDefault(c.Transmitter.Logger).With(zap.String("coupling", "mqtt"))
}

func (c *MQTT) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.Broker)
	opts.SetClientID(c.ClientID)
	opts.SetKeepAlive(c.KeepAlive)
	opts.Username = c.Username
	opts.Password = c.Password
	opts.CleanSession = c.CleanSession
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		c.logger().Warn("connection lost", zap.Error(err))
	}
	return opts
}

// inHandler is a Paho publish handler for messages from our
// subscription.
func (c *MQTT) inHandler(client mqtt.Client, msg mqtt.Message) {
	to := time.NewTimer(c.InTimeout)
	defer to.Stop()

	select {
	case <-c.done():
	case c.incoming <- msg:
	case <-to.C:
		c.logger().Warn("dropping request due to stall",
			zap.String("topic", msg.Topic()))
	}
}

// Start creates the MQTT session and subscribes to RequestTopic.
func (c *MQTT) Start(ctx context.Context) error {
	log := c.logger()

	c.incoming = make(chan mqtt.Message, 16)
	if c.Client == nil {
		c.Client = mqtt.NewClient(c.options())
	}

	log.Info("connecting", zap.String("broker", c.Broker))
	if token := c.Client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	log.Info("subscribing", zap.String("topic", c.RequestTopic))
	if token := c.Client.Subscribe(c.RequestTopic, c.QoS, c.inHandler); token.Wait() && token.Error() != nil {
		c.Client.Disconnect(c.Quiesce)
		return token.Error()
	}

	return nil
}

// Serve handles incoming requests until Stop or ctx is done.
func (c *MQTT) Serve(ctx context.Context) error {
	if c.incoming == nil {
		return NotStarted
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done():
			return nil
		case msg := <-c.incoming:
			c.handle(ctx, msg)
		}
	}
}

func (c *MQTT) handle(ctx context.Context, msg mqtt.Message) {
	var (
		t     = c.Transmitter
		codec = t.codec()
		topic = c.ReplyTopic
		log   = c.logger()
	)

	req, r := t.Decode(codec, msg.Payload())
	if req != nil {
		if req.ReplyTo != "" {
			topic = req.ReplyTo
		}
		r = t.Do(ctx, req)
	}

	bs, err := codec.Marshal(r)
	if err != nil {
		log.Error("encoding response", zap.Error(err))
		return
	}

	token := c.Client.Publish(topic, c.QoS, false, bs)
	if token.Wait(); token.Error() != nil {
		log.Error("publish failed",
			zap.String("topic", topic),
			zap.Error(token.Error()))
	}
}

// Stop terminates the MQTT session.
func (c *MQTT) Stop(ctx context.Context) error {
	c.stop()
	c.disconnect.Do(func() {
		if c.Client != nil {
			c.logger().Info("disconnecting")
			c.Client.Disconnect(c.Quiesce)
		}
	})
	return nil
}
