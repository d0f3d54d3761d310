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

// glycin-cat drives the sandboxed decoding pipeline from the command
// line: print image info, list installed loaders, or dump raw frame
// pixels.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"glycin.dev/glycin/pkg/config"
	"glycin.dev/glycin/pkg/glycin"
)

var (
	flagTimeout time.Duration
	flagNoLoop  bool
	flagFrame   uint32
	flagOut     string
)

func main() {
	root := &cobra.Command{
		Use:           "glycin-cat",
		Short:         "decode images through sandboxed loaders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", time.Minute, "per-operation deadline")

	info := &cobra.Command{
		Use:   "info FILE",
		Short: "print image info and metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}

	frame := &cobra.Command{
		Use:   "frame FILE",
		Short: "decode one frame and write its raw pixels",
		Args:  cobra.ExactArgs(1),
		RunE:  runFrame,
	}
	frame.Flags().Uint32Var(&flagFrame, "index", 0, "frame index to decode")
	frame.Flags().BoolVar(&flagNoLoop, "no-loop", false, "fail instead of wrapping past the last frame")
	frame.Flags().StringVarP(&flagOut, "output", "o", "-", "output path for raw pixel bytes")

	mimes := &cobra.Command{
		Use:   "mimes",
		Short: "list MIME types with an installed loader",
		Args:  cobra.NoArgs,
		RunE:  runMimes,
	}

	root.AddCommand(info, frame, mimes)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "glycin-cat:", err)
		os.Exit(1)
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	img, err := glycin.NewLoaderFile(args[0]).Load(ctx)
	if err != nil {
		return err
	}
	defer img.Close()

	fmt.Printf("mime type:   %s\n", img.MimeType())
	fmt.Printf("size:        %dx%d\n", img.Width(), img.Height())
	fmt.Printf("orientation: %d\n", img.Orientation())
	if n := img.FrameCount(); n > 0 {
		fmt.Printf("frames:      %d\n", n)
	} else {
		fmt.Printf("frames:      unknown\n")
	}
	for _, key := range img.MetadataKeys() {
		v, _ := img.Metadata(key)
		fmt.Printf("meta %-12s %s\n", key+":", v)
	}
	return nil
}

func runFrame(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	img, err := glycin.NewLoaderFile(args[0]).Load(ctx)
	if err != nil {
		return err
	}
	defer img.Close()

	var frame *glycin.Frame
	if flagFrame > 0 {
		frame, err = img.SpecificFrame(ctx, flagFrame)
	} else {
		req := glycin.NewFrameRequest()
		req.LoopAnimation = !flagNoLoop
		frame, err = img.NextFrameWith(ctx, req)
	}
	if err != nil {
		return err
	}

	out := os.Stdout
	if flagOut != "-" {
		out, err = os.Create(flagOut)
		if err != nil {
			return err
		}
		defer out.Close()
	}
	fmt.Fprintf(os.Stderr, "%dx%d %s stride %d delay %v\n",
		frame.Width(), frame.Height(), frame.MemoryFormat(), frame.Stride(), frame.Delay())
	_, err = out.Write(frame.Buf())
	return err
}

func runMimes(cmd *cobra.Command, args []string) error {
	reg := config.Default()
	for _, mime := range reg.MimeTypes(config.RoleLoader) {
		entry, _ := reg.Lookup(config.RoleLoader, mime)
		extra := ""
		if _, ok := reg.Lookup(config.RoleEditor, mime); ok {
			extra = " [editor]"
		}
		fmt.Printf("%-28s %s%s\n", mime, entry.Exec, extra)
	}
	for _, d := range reg.Diagnostics() {
		fmt.Fprintln(os.Stderr, "skipped:", d)
	}
	return nil
}
