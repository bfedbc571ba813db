package glob

import (
	"bufio"
	"net"
	"sort"
	"testing"
	"time"

	"github.com/lavv17/lftp-sub002/ftpsession"
	"github.com/lavv17/lftp-sub002/lscache"
	"github.com/lavv17/lftp-sub002/resolver"
	"github.com/lavv17/lftp-sub002/resource"
	"github.com/lavv17/lftp-sub002/scheduler"
)

func listenLoopback(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func newLoggedInSession(t *testing.T, home string, script func(conn net.Conn, r *bufio.Reader)) (*ftpsession.Session, *scheduler.Scheduler) {
	t.Helper()
	ln, port := listenLoopback(t)

	go func() {
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		write := func(s string) { _, _ = conn.Write([]byte(s)) }

		write("220 Ready\r\n")
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		write("230 logged in\r\n")
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		write("211-Features:\r\n211 End\r\n")
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		write("257 \"" + home + "\" is current directory\r\n")

		script(conn, r)
	}()

	sched := scheduler.New()
	store := resource.NewMap()
	res := resolver.New(16, time.Minute)
	s := ftpsession.New(sched, store, res, "ftp://glob", "127.0.0.1", port)
	s.Open("anon", "pw")
	return s, sched
}

func runTasks(t *testing.T, sched *scheduler.Scheduler, done func() bool, deadline time.Duration) {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		for _, task := range sched.Tasks() {
			sched.Roll(task)
		}
		if done() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for expansion to finish")
}

func servePASVListing(t *testing.T, conn net.Conn, r *bufio.Reader, body string) {
	t.Helper()
	write := func(s string) { _, _ = conn.Write([]byte(s)) }

	dataLn, dataPort := listenLoopback(t)
	defer dataLn.Close()

	if _, err := r.ReadString('\n'); err != nil { // PASV
		return
	}
	write("227 Entering Passive Mode (127,0,0,1," + itoa(dataPort/256) + "," + itoa(dataPort%256) + ").\r\n")

	dataConnCh := make(chan net.Conn, 1)
	go func() {
		c, err := dataLn.Accept()
		if err == nil {
			dataConnCh <- c
		}
	}()

	if _, err := r.ReadString('\n'); err != nil { // LIST ...
		return
	}
	write("150 Opening data connection\r\n")

	select {
	case dc := <-dataConnCh:
		_, _ = dc.Write([]byte(body))
		dc.Close()
	case <-time.After(2 * time.Second):
		t.Error("data connection never accepted")
	}

	write("226 Transfer complete\r\n")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func TestExpanderNoWildcardIsIdempotentAfterUnescaping(t *testing.T) {
	sched := scheduler.New()
	s := ftpsession.New(sched, resource.NewMap(), resolver.New(16, time.Minute), "ftp://x", "127.0.0.1", 1)
	e := NewExpander(sched, s, lscache.New(1<<20), resource.NewMap(), "", lscache.Identity{}, `plain\ name`, "")
	runTasks(t, sched, e.Done, time.Second)

	got, err := e.Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "plain name" {
		t.Fatalf("got %v, want [\"plain name\"]", got)
	}
}

func TestExpanderTildeWildcardListsHomeDirectory(t *testing.T) {
	body := "" +
		"-rw-r--r-- 1 u g 1 Jan  1 00:00 a.txt\r\n" +
		"-rw-r--r-- 1 u g 1 Jan  1 00:00 b.txt\r\n" +
		"-rw-r--r-- 1 u g 1 Jan  1 00:00 c.dat\r\n"

	s, sched := newLoggedInSession(t, "/home/u", func(conn net.Conn, r *bufio.Reader) {
		write := func(s string) { _, _ = conn.Write([]byte(s)) }
		if _, err := r.ReadString('\n'); err != nil { // CWD /home/u
			return
		}
		write("250 directory changed\r\n")
		servePASVListing(t, conn, r, body)
	})

	cache := lscache.New(1 << 20)
	id := lscache.Identity{Host: "127.0.0.1", Port: 1, User: "anon"}
	runTasks(t, sched, func() bool { return s.State == ftpsession.StateEOF }, 2*time.Second)
	e := NewExpander(sched, s, cache, resource.NewMap(), "", id, "~/*.txt", s.Home())
	runTasks(t, sched, e.Done, 3*time.Second)

	got, err := e.Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sort.Strings(got)
	want := []string{"/home/u/a.txt", "/home/u/b.txt"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExpanderSkipsCandidateThatFailsToList(t *testing.T) {
	s, sched := newLoggedInSession(t, "/", func(conn net.Conn, r *bufio.Reader) {
		write := func(s string) { _, _ = conn.Write([]byte(s)) }
		if _, err := r.ReadString('\n'); err != nil { // CWD /nope
			return
		}
		write("550 no such directory\r\n")
	})

	cache := lscache.New(1 << 20)
	id := lscache.Identity{Host: "127.0.0.1", Port: 1, User: "anon"}
	e := NewExpander(sched, s, cache, resource.NewMap(), "", id, "/nope/*.txt", "")
	runTasks(t, sched, e.Done, 3*time.Second)

	got, err := e.Result()
	if err != nil {
		t.Fatalf("a failing candidate directory should not fail the whole glob: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %v", got)
	}
}
