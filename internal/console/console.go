package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"wisefido-rfid/internal/app"

	"go.uber.org/zap"
)

// Console 基于标准输入输出的交互界面
//
// 输入在 Run 的 goroutine 中解析为 app.Message；Notify 由主上下文调用，两者通过 mu 串行输出。
type Console struct {
	in     io.Reader
	out    io.Writer
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	lines   chan string
	quit    bool
	display displayState
}

// New 创建控制台
func New(in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	return &Console{
		in:     in,
		out:    out,
		logger: logger,
		now:    time.Now,
		lines:  make(chan string),
	}
}

// Run 读取命令直到 quit、输入结束或 ctx 取消
func (c *Console) Run(ctx context.Context, submit func(app.Message) bool) error {
	readErr := make(chan error, 1)
	go c.readLines(ctx, readErr)

	c.printf("输入 help 查看可用命令\n")
	for {
		c.printf("%s", c.prompt())

		line, ok := c.nextLine(ctx)
		if !ok {
			select {
			case err := <-readErr:
				return err
			default:
				return nil
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := c.execute(ctx, line, submit); err != nil {
			c.printf("错误: %v\n", err)
		}
		if c.quit {
			return nil
		}
	}
}

func (c *Console) readLines(ctx context.Context, errCh chan<- error) {
	defer close(c.lines)

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		select {
		case c.lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.logger.Error("Failed to read console input", zap.Error(err))
		errCh <- fmt.Errorf("failed to read input: %w", err)
	}
}

func (c *Console) nextLine(ctx context.Context) (string, bool) {
	select {
	case line, ok := <-c.lines:
		return line, ok
	case <-ctx.Done():
		return "", false
	}
}

// prompt 提示符带上当前模式和用户
func (c *Console) prompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	tags := []string{}
	if c.display.mode != "" {
		tags = append(tags, c.display.mode.Label())
	}
	if c.display.username != "" {
		tags = append(tags, c.display.username)
	}
	if len(tags) == 0 {
		return "rfid> "
	}
	return "rfid[" + strings.Join(tags, " ") + "]> "
}

// confirm 询问 y/N，默认否
func (c *Console) confirm(ctx context.Context, question string) bool {
	c.printf("%s (y/N) ", question)
	line, ok := c.nextLine(ctx)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "是":
		return true
	}
	return false
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// logf 带时间戳的日志行
func (c *Console) logf(format string, args ...interface{}) {
	c.printf("[%s] %s\n", c.now().Format("15:04:05"), fmt.Sprintf(format, args...))
}
