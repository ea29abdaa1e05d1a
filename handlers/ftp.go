package handlers

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/arachnesearch/arachne/models"
)

// ftpClient is a minimal FTP control-connection client supporting just
// what the crawler needs: login, CWD (used both to enter the task's
// directory and, for ambiguous LIST entries, to probe whether they are
// directories), and a PASV-mode LIST. The raw CWD response code drives
// error classification directly — a 5xx on the task's own directory
// means "not found", while a 5xx on a later probe means "it's a file,
// not an error".
type ftpClient struct {
	conn *textproto.Conn
	raw  net.Conn
}

func dialFTP(ctx context.Context, addr string, timeout time.Duration) (*ftpClient, error) {
	d := net.Dialer{Timeout: timeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	conn := textproto.NewConn(raw)
	if _, _, err := conn.ReadResponse(0); err != nil {
		raw.Close()
		return nil, err
	}
	return &ftpClient{conn: conn, raw: raw}, nil
}

func (c *ftpClient) cmd(format string, args ...interface{}) (int, string, error) {
	if err := c.conn.PrintfLine(format, args...); err != nil {
		return 0, "", err
	}
	return c.conn.ReadResponse(0)
}

func (c *ftpClient) login(user, pass string) error {
	if user == "" {
		user = "anonymous"
	}
	code, _, err := c.cmd("USER %s", user)
	if err != nil {
		return err
	}
	if code == 331 {
		if _, _, err := c.cmd("PASS %s", pass); err != nil {
			return err
		}
	} else if code/100 != 2 {
		return fmt.Errorf("ftp: login failed, code %d", code)
	}
	return nil
}

// cwd changes directory and returns the raw response code so the
// caller can classify a 5xx differently depending on whether this is
// the task's initial CWD or a later probe CWD.
func (c *ftpClient) cwd(path string) (int, error) {
	code, _, err := c.cmd("CWD %s", path)
	return code, err
}

// list opens a PASV data connection and retrieves the current
// directory's LIST output.
func (c *ftpClient) list(ctx context.Context, timeout time.Duration) ([]string, error) {
	code, msg, err := c.cmd("PASV")
	if err != nil {
		return nil, err
	}
	if code != 227 {
		return nil, fmt.Errorf("ftp: PASV failed, code %d", code)
	}
	addr, err := parsePASVAddr(msg)
	if err != nil {
		return nil, err
	}

	d := net.Dialer{Timeout: timeout}
	data, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer data.Close()

	if err := c.conn.PrintfLine("LIST"); err != nil {
		return nil, err
	}
	code, _, err = c.conn.ReadResponse(0)
	if err != nil {
		return nil, err
	}
	if code/100 != 1 {
		return nil, fmt.Errorf("ftp: LIST failed, code %d", code)
	}

	var lines []string
	scanner := bufio.NewScanner(data)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if _, _, err := c.conn.ReadResponse(0); err != nil {
		return nil, err
	}
	return lines, nil
}

func (c *ftpClient) quit() {
	c.cmd("QUIT")
	c.raw.Close()
}

// parsePASVAddr extracts the data-connection address from a PASV
// response's "(h1,h2,h3,h4,p1,p2)" payload.
func parsePASVAddr(msg string) (string, error) {
	start := strings.IndexByte(msg, '(')
	end := strings.IndexByte(msg, ')')
	if start < 0 || end < 0 || end <= start {
		return "", fmt.Errorf("ftp: malformed PASV response %q", msg)
	}
	parts := strings.Split(msg[start+1:end], ",")
	if len(parts) != 6 {
		return "", fmt.Errorf("ftp: malformed PASV response %q", msg)
	}
	nums := make([]int, 6)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return "", fmt.Errorf("ftp: malformed PASV response %q", msg)
		}
		nums[i] = n
	}
	ip := fmt.Sprintf("%d.%d.%d.%d", nums[0], nums[1], nums[2], nums[3])
	port := nums[4]*256 + nums[5]
	return net.JoinHostPort(ip, strconv.Itoa(port)), nil
}

// FTPHandler crawls ftp:// sites, applying a fixed error taxonomy: a
// connect/login/socket failure is site-scoped, a failed initial CWD
// means the target doesn't exist (not an error), and any FTP protocol
// error after that point is directory-scoped.
type FTPHandler struct {
	pace    *PaceLimiter
	timeout time.Duration
}

// NewFTPHandler returns an FTPHandler that paces outbound connections
// per site through pace and bounds every network operation by timeout.
func NewFTPHandler(pace *PaceLimiter, timeout time.Duration) *FTPHandler {
	return &FTPHandler{pace: pace, timeout: timeout}
}

func (h *FTPHandler) Execute(ctx context.Context, task models.CrawlTask) Result {
	if err := h.pace.Wait(ctx, task.SiteID, 1); err != nil {
		return Result{Outcome: OutcomeErrorSite, Err: err}
	}

	addr := task.URL.Host()
	if task.URL.Port() == "" {
		addr = net.JoinHostPort(task.URL.Hostname(), "21")
	}
	client, err := dialFTP(ctx, addr, h.timeout)
	if err != nil {
		return Result{Outcome: OutcomeErrorSite, Err: err}
	}
	defer client.quit()

	var user, pass string
	if u := task.URL.User(); u != nil {
		user = u.Username()
		pass, _ = u.Password()
	}
	if err := client.login(user, pass); err != nil {
		return Result{Outcome: OutcomeErrorSite, Err: err}
	}

	code, err := client.cwd(task.URL.Path())
	if err != nil {
		return Result{Outcome: OutcomeErrorSite, Err: err}
	}
	if code/100 == 5 {
		return Result{Outcome: OutcomeDone, Crawl: models.NewCrawlResult(task, false)}
	}
	if code/100 != 2 {
		return Result{Outcome: OutcomeErrorSite, Err: fmt.Errorf("ftp: CWD failed, code %d", code)}
	}

	lines, err := client.list(ctx, h.timeout)
	if err != nil {
		return Result{Outcome: OutcomeErrorDir, Err: err}
	}

	result := models.NewCrawlResult(task, true)
	for _, line := range lines {
		name, isDir, isDirKnown, ok := parseListLine(line)
		if !ok || name == "" || name == "." || name == ".." {
			continue
		}
		if !isDirKnown {
			isDir, err = h.probeIsDir(client, task, name)
			if err != nil {
				return Result{Outcome: OutcomeErrorDir, Err: err}
			}
		}
		result.Append(name, isDir, true)
	}

	return Result{Outcome: OutcomeDone, Crawl: result}
}

// probeIsDir attempts to CWD into an ambiguous entry to learn whether
// it is a directory: success means yes, a permission/not-found error
// means no (it is simply a file, not a crawler error). Any other
// response is a genuine directory-scoped error.
func (h *FTPHandler) probeIsDir(client *ftpClient, task models.CrawlTask, name string) (bool, error) {
	entryURL, err := task.URL.Join(name)
	if err != nil {
		return false, nil
	}
	code, err := client.cwd(entryURL.Path())
	if err != nil {
		return false, err
	}
	switch {
	case code/100 == 5:
		return false, nil
	case code/100 == 2:
		if _, err := client.cwd(task.URL.Path()); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("ftp: probe CWD failed, code %d", code)
	}
}
