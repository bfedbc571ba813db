// Command ftpcoredemo wires scheduler, ftpsession, lister, glob,
// transfer and job together end to end: log in, list a remote path
// (expanding it first if it looks like a wildcard), and optionally
// fetch or store one file, all driven by a single cooperative
// scheduler loop. It exists to exercise the collaboration the
// packages are built around, not as a full interactive client — the
// shell/command-line front end spec.md keeps out of core scope.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/lavv17/lftp-sub002/ftpsession"
	"github.com/lavv17/lftp-sub002/glob"
	"github.com/lavv17/lftp-sub002/iobuf"
	"github.com/lavv17/lftp-sub002/job"
	"github.com/lavv17/lftp-sub002/lscache"
	"github.com/lavv17/lftp-sub002/resolver"
	"github.com/lavv17/lftp-sub002/resource"
	"github.com/lavv17/lftp-sub002/scheduler"
	"github.com/lavv17/lftp-sub002/transfer"
)

func main() {
	host := pflag.StringP("host", "h", "localhost", "FTP server host")
	port := pflag.IntP("port", "P", 21, "FTP server port")
	user := pflag.StringP("user", "u", "anonymous", "login user")
	pass := pflag.String("pass", "anonymous@", "login password")
	path := pflag.String("ls", "/", "remote path or wildcard to list")
	getPath := pflag.String("get", "", "remote path to download")
	out := pflag.String("out", "", "local path to write --get into")
	putPath := pflag.String("put", "", "local path to upload")
	putAs := pflag.String("put-as", "", "remote path --put writes to")
	parallel := pflag.IntP("parallel", "n", 2, "max concurrent jobs in the queue")
	passive := pflag.Bool("passive", true, "use PASV instead of PORT")
	timeout := pflag.Duration("timeout", 20*time.Second, "overall deadline")
	pflag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	sched := scheduler.New()
	store := resource.NewMap()
	store.Set(resource.FTPPassiveMode, "", fmt.Sprintf("%v", *passive))

	res := resolver.New(64, 5*time.Minute)
	closure := fmt.Sprintf("ftp://%s:%d", *host, *port)
	session := ftpsession.New(sched, store, res, closure, *host, *port)
	session.Open(*user, *pass)

	ready := func() bool {
		return session.State == ftpsession.StateEOF || session.State == ftpsession.StateWaiting
	}
	if !runUntil(sched, ready, *timeout) {
		log.Fatal("timed out waiting for login")
	}

	queue := job.NewQueue(sched, *parallel)
	id := lscache.Identity{Host: *host, Port: *port, User: *user}
	cache := lscache.New(4 << 20)

	var lsExpander lsResult
	lsJob := queue.Submit(job.KindLs, "ls "+*path, nil, func() (job.DoneStepper, error) {
		if glob.SupportsNative(store, closure, *path) {
			exp := glob.NewNativeExpander(sched, session, store, closure, *path)
			lsExpander = exp
			return exp, nil
		}
		exp := glob.NewExpander(sched, session, cache, store, closure, id, *path, "/")
		lsExpander = exp
		return exp, nil
	})

	var getJob, putJob *job.Job
	if *getPath != "" {
		dstPath := *out
		if dstPath == "" {
			dstPath = "." + *getPath
		}
		getJob = queue.Submit(job.KindGet, "get "+*getPath, nil, func() (job.DoneStepper, error) {
			src := transfer.NewSessionSource(sched, session, store, closure, *getPath)
			dst := newFileEndpoint(sched, dstPath, true)
			return transfer.NewCopy(sched, "get:"+*getPath, src, dst, nil, transfer.RestartPolicy{}, false, nil)
		})
	}
	if *putPath != "" {
		remote := *putAs
		if remote == "" {
			remote = *putPath
		}
		putJob = queue.Submit(job.KindPut, "put "+*putPath, nil, func() (job.DoneStepper, error) {
			src := newFileEndpoint(sched, *putPath, false)
			dst := transfer.NewSessionDest(sched, session, store, closure, remote)
			return transfer.NewCopy(sched, "put:"+*putPath, src, dst, nil, transfer.RestartPolicy{}, false, nil)
		})
	}

	runUntil(sched, func() bool {
		if !lsJob.Done() {
			return false
		}
		if getJob != nil && !getJob.Done() {
			return false
		}
		if putJob != nil && !putJob.Done() {
			return false
		}
		return true
	}, *timeout)

	reportLs(lsExpander)
	reportTransfer("get", getJob)
	reportTransfer("put", putJob)

	if lsJob.ExitCode() != 0 || (getJob != nil && getJob.ExitCode() != 0) || (putJob != nil && putJob.ExitCode() != 0) {
		os.Exit(1)
	}
}

// runUntil steps every scheduler task in round-robin order, the same
// walk the test suites across this module use, until cond is true or
// deadline elapses.
func runUntil(sched *scheduler.Scheduler, cond func() bool, deadline time.Duration) bool {
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		for _, t := range sched.Tasks() {
			sched.Roll(t)
		}
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

// lsResult is the common shape of glob.Expander and glob.NativeExpander
// needed to print what KindLs found, without caring which one ran.
type lsResult interface {
	Result() ([]string, error)
}

func reportLs(exp lsResult) {
	if exp == nil {
		return
	}
	names, err := exp.Result()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ls: %v\n", err)
		return
	}
	for _, n := range names {
		fmt.Println(n)
	}
}

func reportTransfer(verb string, j *job.Job) {
	if j == nil {
		return
	}
	if err := j.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", verb, err)
	}
}

// fileEndpoint is the local-filesystem half of a get/put transfer.
// Core scope stops at transfer.Endpoint; this is glue code for the
// demo, not a module of its own.
type fileEndpoint struct {
	sched *scheduler.Scheduler
	path  string
	write bool
	f     *os.File
}

func newFileEndpoint(sched *scheduler.Scheduler, path string, write bool) *fileEndpoint {
	return &fileEndpoint{sched: sched, path: path, write: write}
}

func (e *fileEndpoint) Open(offset int64) (*iobuf.Buffer, error) {
	var f *os.File
	var err error
	if e.write {
		f, err = os.OpenFile(e.path, os.O_WRONLY|os.O_CREATE, 0o644)
	} else {
		f, err = os.Open(e.path)
	}
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	e.f = f
	if e.write {
		return iobuf.NewWriterStream(e.sched, "local-dst:"+e.path, f).Buffer, nil
	}
	return iobuf.NewReaderStream(e.sched, "local-src:"+e.path, f).Buffer, nil
}

func (e *fileEndpoint) Close() error {
	if e.f == nil {
		return nil
	}
	err := e.f.Close()
	e.f = nil
	return err
}

func (e *fileEndpoint) SupportsRestart() bool { return true }
