/*
Copyright 2026 The glycin-go Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
)

// A Handler answers protocol requests on the loader side of the
// connection. Decode the JSON body yourself with UnmarshalBody;
// returned reply values are JSON-encoded. Returning a *RemoteError
// sends a structured error reply; any other error sends one with the
// bare message.
type Handler interface {
	Handle(m Method, body []byte, files []*os.File) (reply interface{}, replyFiles []*os.File, err error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(m Method, body []byte, files []*os.File) (interface{}, []*os.File, error)

func (f HandlerFunc) Handle(m Method, body []byte, files []*os.File) (interface{}, []*os.File, error) {
	return f(m, body, files)
}

// UnmarshalBody decodes a request body into args.
func UnmarshalBody(body []byte, args interface{}) error {
	return json.Unmarshal(body, args)
}

// Serve runs the loader side of the protocol: receive a request,
// dispatch it to h, send the reply, repeat. It returns when the peer
// closes the connection, when ctx is done, or after replying to
// TearDown. Loader binaries and in-process test loaders both sit in
// this loop.
func (c *Conn) Serve(ctx context.Context, h Handler) error {
	for {
		kind, m, id, body, files, err := c.recv(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if kind != kindRequest {
			closeAll(files)
			return errors.New("rpc: non-request message on loader side")
		}
		reply, replyFiles, herr := h.Handle(m, body, files)
		closeAll(files)
		if herr != nil {
			var re *RemoteError
			if !errors.As(herr, &re) {
				re = &RemoteError{Message: herr.Error()}
			}
			ebody, _ := json.Marshal(re)
			if err := c.sendLocked(kindError, m, id, ebody, nil); err != nil {
				return err
			}
			continue
		}
		rbody, err := json.Marshal(reply)
		if err != nil {
			return err
		}
		err = c.sendLocked(kindReply, m, id, rbody, replyFiles)
		closeAll(replyFiles)
		if err != nil {
			return err
		}
		if m == TearDown {
			return nil
		}
	}
}

func (c *Conn) sendLocked(kind byte, m Method, id [16]byte, body []byte, files []*os.File) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(kind, m, id, body, files)
}
