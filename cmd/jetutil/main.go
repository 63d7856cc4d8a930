// Command jetutil is a non-interactive inspection tool over jetdb
// databases: create an empty file, list its tables, dump a table's rows,
// or check an index's invariants.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jahlborn/jackcess-sub007"
	"github.com/jahlborn/jackcess-sub007/jetlog"
	"github.com/jahlborn/jackcess-sub007/jetopt"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var cfgPath string
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&cfgPath, "config", "", "path to a jetutil.toml config file")
	cmd := os.Args[1]
	args := os.Args[2:]
	fs.Parse(args)
	rest := fs.Args()

	opts := jetopt.DefaultOptions()
	if cfgPath != "" {
		loaded, err := jetopt.LoadFile(cfgPath)
		if err != nil {
			fail("load config %s: %v", cfgPath, err)
		}
		opts = loaded
	}

	switch cmd {
	case "create":
		runCreate(rest, opts)
	case "tables":
		runTables(rest, opts)
	case "dump":
		runDump(rest, opts)
	case "check":
		runCheck(rest, opts)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: jetutil <command> [-config jetutil.toml] <args...>")
	fmt.Fprintln(os.Stderr, "  create <path>          create an empty Jet5 (.accdb) database")
	fmt.Fprintln(os.Stderr, "  tables <path>          list the tables in a database")
	fmt.Fprintln(os.Stderr, "  dump <path> <table>    print every live row of a table")
	fmt.Fprintln(os.Stderr, "  check <path> <table>   validate a table's row/index invariants")
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "jetutil: "+format+"\n", args...)
	os.Exit(1)
}

func runCreate(args []string, opts jetopt.Options) {
	if len(args) != 1 {
		fail("create requires a path")
	}
	db, err := jetdb.Create(args[0], jetdb.VersionJet5, opts)
	if err != nil {
		fail("create %s: %v", args[0], err)
	}
	if err := db.Close(); err != nil {
		fail("close %s: %v", args[0], err)
	}
	fmt.Printf("created %s\n", args[0])
}

func runTables(args []string, opts jetopt.Options) {
	if len(args) != 1 {
		fail("tables requires a path")
	}
	opts.ReadOnly = true
	db, err := jetdb.Open(args[0], opts)
	if err != nil {
		fail("open %s: %v", args[0], err)
	}
	defer db.Close()
	for _, name := range db.TableNames() {
		fmt.Println(name)
	}
}

func runDump(args []string, opts jetopt.Options) {
	if len(args) != 2 {
		fail("dump requires a path and a table name")
	}
	opts.ReadOnly = true
	db, err := jetdb.Open(args[0], opts)
	if err != nil {
		fail("open %s: %v", args[0], err)
	}
	defer db.Close()

	tbl, err := db.Table(args[1])
	if err != nil {
		fail("table %s: %v", args[1], err)
	}
	cur := tbl.NewTableScanCursor(jetdb.Forward)
	n := 0
	for {
		_, vals, ok, err := cur.Next()
		if err != nil {
			fail("scan %s: %v", args[1], err)
		}
		if !ok {
			break
		}
		row := make([]interface{}, len(vals))
		for i, v := range vals {
			row[i] = v.Raw()
		}
		fmt.Println(row...)
		n++
	}
	fmt.Printf("%d rows\n", n)
}

func runCheck(args []string, opts jetopt.Options) {
	if len(args) != 2 {
		fail("check requires a path and a table name")
	}
	opts.ReadOnly = true
	db, err := jetdb.Open(args[0], opts)
	if err != nil {
		fail("open %s: %v", args[0], err)
	}
	defer db.Close()

	tbl, err := db.Table(args[1])
	if err != nil {
		fail("table %s: %v", args[1], err)
	}
	n, err := tbl.RowCount()
	if err != nil {
		fail("row count %s: %v", args[1], err)
	}

	log := jetlog.For("jetutil")
	ok := true
	if err := tbl.ValidateIndexes(); err != nil {
		log.Warnf("index validation failed: %v", err)
		ok = false
	}
	for _, idx := range tbl.Def.Indexes {
		stats, err := tbl.IndexStatsFor(idx.Name)
		if err != nil {
			fail("index stats %s: %v", idx.Name, err)
		}
		if !idx.IgnoreNulls && stats.EntryCount != n {
			log.WithField("index", idx.Name).Warnf("entry count %d != row count %d", stats.EntryCount, n)
			ok = false
		}
	}
	if ok {
		fmt.Printf("%s: %d rows, %d indexes consistent\n", args[1], n, len(tbl.Def.Indexes))
	} else {
		fmt.Printf("%s: %d rows, inconsistencies found (see warnings above)\n", args[1], n)
		os.Exit(1)
	}
}
