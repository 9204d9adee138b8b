// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// hnetctl is the hnet-ifup/hnet-ifdown multicall binary: which mode it
// runs in is selected by argv[0], mirroring the original ipc_ifupdown
// multicall behavior (_examples/original_source/src/ipc.c).
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dtaht/hnetd/internal/ipcclient"
	"github.com/dtaht/hnetd/logger"
)

var log = logger.GetLogger("hnetctl")

func main() {
	sock := flag.String("socket", "/var/run/hnetd.sock", "hnetd IPC socket path")
	mode := flag.String("c", "auto", "interface mode (adhoc, guest, hybrid, leaf, external, auto)")
	prefixes := flag.String("p", "", "comma or space separated list of prefixes to assign")
	disablePA := flag.Bool("d", false, "disable prefix assignment on this interface")
	ulaDefault := flag.Bool("u", false, "treat this interface's ULA as the default route source")
	flag.Parse()

	progName := filepath.Base(os.Args[0])
	down := strings.Contains(progName, "ifdown")
	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <ifname>\n", progName)
		os.Exit(2)
	}
	ifname := flag.Arg(0)

	if down {
		resp, err := ipcclient.Down(*sock, ifname)
		if err != nil {
			log.WithError(err).Fatal("ifdown failed")
		}
		if resp.Error != "" {
			log.Fatal(resp.Error)
		}
		return
	}

	var prefixList []string
	for _, p := range strings.FieldsFunc(*prefixes, func(r rune) bool { return r == ',' || r == ' ' }) {
		prefixList = append(prefixList, p)
	}

	resp, err := ipcclient.Up(*sock, ifname, ipcclient.Options{
		Mode:             *mode,
		Prefixes:         prefixList,
		DisablePA:        *disablePA,
		ULADefaultRouter: *ulaDefault,
	})
	if err != nil {
		log.WithError(err).Fatal("ifup failed")
	}
	if resp.Error != "" {
		log.Fatal(resp.Error)
	}
}
