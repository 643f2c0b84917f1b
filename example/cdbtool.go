// cdbtool.go -- command line front end for github.com/opencoff/cdb
//
// cdbtool builds and inspects constant databases from the shell:
//
//	cdbtool create OUTPUT [INPUT ...]   build a db from "key\tvalue" lines
//	cdbtool get DB KEY                  print every value stored for KEY
//	cdbtool dump DB                     print every (key, value) pair
//	cdbtool stat DB                     print record count and file size
//
// With no INPUT files, create reads from stdin.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/opencoff/cdb"
)

func main() {
	usage := fmt.Sprintf("%s create|get|dump|stat ...", os.Args[0])

	var verbose bool
	flag.BoolVarP(&verbose, "verbose", "v", false, "Log to stderr instead of discarding diagnostics")
	flag.Usage = func() {
		fmt.Printf("cdbtool - build and inspect constant databases\nUsage: %s\n", usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			cdb.SetLogger(l)
		}
	}

	args := flag.Args()
	if len(args) < 1 {
		die("no subcommand given\nUsage: %s", usage)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create":
		doCreate(rest)
	case "get":
		doGet(rest)
	case "dump":
		doDump(rest)
	case "stat":
		doStat(rest)
	default:
		die("unknown subcommand %q\nUsage: %s", cmd, usage)
	}
}

func doCreate(args []string) {
	if len(args) < 1 {
		die("create: no output file name given")
	}

	out := args[0]
	inputs := args[1:]

	w, err := cdb.Create(out)
	if err != nil {
		die("can't create %s: %s", out, err)
	}

	add := func(name string, r *bufio.Scanner) {
		var n int
		for r.Scan() {
			line := r.Text()
			if line == "" {
				continue
			}
			k, v, ok := strings.Cut(line, "\t")
			if !ok {
				warn("%s: skipping malformed line %q (no tab)", name, line)
				continue
			}
			if err := w.Put([]byte(k), []byte(v)); err != nil {
				die("%s: can't add %q: %s", name, k, err)
			}
			n++
		}
		fmt.Printf("+ %s: %d records\n", name, n)
	}

	if len(inputs) == 0 {
		add("<stdin>", bufio.NewScanner(os.Stdin))
	} else {
		for _, f := range inputs {
			fd, err := os.Open(f)
			if err != nil {
				warn("can't open %s: %s", f, err)
				continue
			}
			add(f, bufio.NewScanner(fd))
			fd.Close()
		}
	}

	if err := w.Finish(); err != nil {
		die("can't write %s: %s", out, err)
	}
	fmt.Printf("%s: %d records\n", out, w.Len())
}

func doGet(args []string) {
	if len(args) != 2 {
		die("get: usage: get DB KEY")
	}

	rd := openOrDie(args[0])
	defer rd.Close()

	key := []byte(args[1])
	var n int
	for v, err := range rd.Find(key) {
		if err != nil {
			die("get: %s", err)
		}
		fmt.Println(string(v))
		n++
	}
	if n == 0 {
		die("get: key %q not found", args[1])
	}
}

func doDump(args []string) {
	if len(args) != 1 {
		die("dump: usage: dump DB")
	}

	rd := openOrDie(args[0])
	defer rd.Close()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	for kv, err := range rd.All() {
		if err != nil {
			die("dump: %s", err)
		}
		fmt.Fprintf(w, "%s\t%s\n", kv[0], kv[1])
	}
}

func doStat(args []string) {
	if len(args) != 1 {
		die("stat: usage: stat DB")
	}

	fn := args[0]
	rd := openOrDie(fn)
	defer rd.Close()

	st, err := os.Stat(fn)
	if err != nil {
		die("stat: %s", err)
	}

	fmt.Printf("%s: %d records, %s\n", fn, rd.Len(), cdb.Humansize(uint64(st.Size())))
}

func openOrDie(fn string) *cdb.Reader {
	rd, err := cdb.Open(fn)
	if err != nil {
		die("can't open %s: %s", fn, err)
	}
	return rd
}

func die(f string, v ...interface{}) {
	warn(f, v...)
	os.Exit(1)
}

func warn(f string, v ...interface{}) {
	z := fmt.Sprintf("%s: %s", os.Args[0], f)
	s := fmt.Sprintf(z, v...)
	if n := len(s); n == 0 || s[n-1] != '\n' {
		s += "\n"
	}
	os.Stderr.WriteString(s)
	os.Stderr.Sync()
}
