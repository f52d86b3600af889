package command

import (
	"fmt"
	"sync/atomic"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/samsamfire/gocansniffer/internal/fifo"
	log "github.com/sirupsen/logrus"
)

const (
	BufferSize       = 256
	MaxTokens        = 10
	TokenSize        = 32
	DefaultQueueSize = 100
	MaxSequenceCount = 10000
)

// Parser assembles bytes into lines, parses them and queues the resulting
// commands. It is the single producer of its queue and never blocks.
type Parser struct {
	buffer         [BufferSize]byte
	cursor         int
	overflowed     bool
	queue          *fifo.Fifo[Command]
	strict         bool
	processedCount atomic.Uint32
	errorCount     atomic.Uint32
}

// NewParser creates a parser pushing to queue. When strict is set invalid
// numbers are rejected instead of being read as 0.
func NewParser(queue *fifo.Fifo[Command], strict bool) (*Parser, error) {
	if queue == nil {
		return nil, fmt.Errorf("%w: nil command queue", cansniffer.ErrInvalidParam)
	}
	return &Parser{queue: queue, strict: strict}, nil
}

// ProcessByte feeds one byte. Control characters other than tab are dropped,
// CR or LF complete a non empty line. A line longer than the buffer is
// discarded up to the next terminator and counted as a single error.
func (p *Parser) ProcessByte(b byte) error {
	if b == '\r' || b == '\n' {
		if p.overflowed {
			p.overflowed = false
			return nil
		}
		if p.cursor == 0 {
			return nil
		}
		return p.completeLine()
	}
	if b < 0x20 && b != '\t' {
		return nil
	}
	if p.overflowed {
		return nil
	}
	if p.cursor >= BufferSize {
		p.cursor = 0
		p.overflowed = true
		p.errorCount.Add(1)
		log.Warnf("[CMD] line exceeds %v bytes, dropped", BufferSize)
		return cansniffer.ErrLineOverflow
	}
	p.buffer[p.cursor] = b
	p.cursor++
	return nil
}

// ProcessBuffer feeds every byte and returns the last error encountered
func (p *Parser) ProcessBuffer(buffer []byte) error {
	var result error
	for _, b := range buffer {
		if err := p.ProcessByte(b); err != nil {
			result = err
		}
	}
	return result
}

// Write implements [io.Writer] so that a transport can feed the parser.
// Errors are accounted in the counters and never returned.
func (p *Parser) Write(buffer []byte) (int, error) {
	_ = p.ProcessBuffer(buffer)
	return len(buffer), nil
}

func (p *Parser) completeLine() error {
	line := string(p.buffer[:p.cursor])
	p.cursor = 0
	cmd, err := p.ParseLine(line)
	if err != nil {
		p.errorCount.Add(1)
		log.Debugf("[CMD] rejected %q : %v", line, err)
		return err
	}
	if !p.queue.Push(cmd) {
		p.errorCount.Add(1)
		log.Warnf("[CMD] queue full, dropped %v", cmd.Type)
		return fmt.Errorf("%w: command %v dropped", cansniffer.ErrQueueFull, cmd.Type)
	}
	p.processedCount.Add(1)
	return nil
}

// Reset drops the partial line
func (p *Parser) Reset() {
	p.cursor = 0
	p.overflowed = false
}

// Pending returns the number of bytes of the current partial line
func (p *Parser) Pending() int {
	return p.cursor
}

// Number of commands queued
func (p *Parser) ProcessedCount() uint32 {
	return p.processedCount.Load()
}

// Number of dropped lines, either malformed, overflowed or not queued
func (p *Parser) ErrorCount() uint32 {
	return p.errorCount.Load()
}

// tokenize splits line on spaces and tabs into at most MaxTokens tokens,
// each cut to TokenSize characters. Extra tokens are ignored.
func tokenize(line string, tokens *[MaxTokens]string) int {
	count := 0
	pos := 0
	for pos < len(line) && count < MaxTokens {
		for pos < len(line) && isSpace(line[pos]) {
			pos++
		}
		if pos >= len(line) {
			break
		}
		start := pos
		for pos < len(line) && !isSpace(line[pos]) {
			pos++
		}
		end := pos
		if end-start > TokenSize {
			end = start + TokenSize
		}
		tokens[count] = line[start:end]
		count++
	}
	return count
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

// ParseLine parses a complete command line
func (p *Parser) ParseLine(line string) (Command, error) {
	var tokenArray [MaxTokens]string
	count := tokenize(line, &tokenArray)
	tokens := tokenArray[:count]
	if count == 0 {
		return Command{}, fmt.Errorf("%w: empty line", cansniffer.ErrParse)
	}
	if count < 2 {
		return Command{}, fmt.Errorf("%w: %q needs a sub command", cansniffer.ErrParse, tokens[0])
	}
	switch tokens[0] {
	case "can":
		switch tokens[1] {
		case "start":
			return Command{Type: CanStart}, nil
		case "stop":
			return Command{Type: CanStop}, nil
		case "info":
			return Command{Type: CanInfo}, nil
		}
	case "filter":
		switch tokens[1] {
		case "add":
			return p.parseFilterAdd(tokens)
		case "del":
			return p.parseFilterDelete(tokens)
		case "list":
			return Command{Type: FilterList}, nil
		}
	case "write":
		switch tokens[1] {
		case "seq":
			return p.parseWriteSequence(tokens)
		case "stop":
			return p.parseWriteStop(tokens)
		default:
			return p.parseWrite(tokens)
		}
	case "read":
		switch tokens[1] {
		case "raw":
			return Command{Type: ReadRaw}, nil
		case "parsed":
			return Command{Type: ReadParsed}, nil
		}
	case "bus":
		if tokens[1] == "load" && count >= 3 {
			switch tokens[2] {
			case "on":
				return Command{Type: BusLoadOn}, nil
			case "off":
				return Command{Type: BusLoadOff}, nil
			case "status":
				return Command{Type: BusLoadStatus}, nil
			}
		}
	}
	return Command{}, fmt.Errorf("%w: unknown command %q", cansniffer.ErrParse, line)
}

func parseKind(token string) (cansniffer.IDKind, error) {
	switch token {
	case "std", "STD":
		return cansniffer.Standard, nil
	case "ext", "EXT":
		return cansniffer.Extended, nil
	default:
		return 0, fmt.Errorf("%w: unknown filter type %q", cansniffer.ErrInvalidParam, token)
	}
}

func (p *Parser) parseID(token string) (uint32, error) {
	id, err := p.parseNumber(token)
	if err != nil {
		return 0, err
	}
	if id > cansniffer.MaxExtendedID {
		return 0, fmt.Errorf("%w: id x%x out of range", cansniffer.ErrInvalidParam, id)
	}
	return id, nil
}

func (p *Parser) parseNumber(token string) (uint32, error) {
	return parseNumber(token, p.strict)
}

// filter add <id> [mask] [std|ext]
func (p *Parser) parseFilterAdd(tokens []string) (Command, error) {
	cmd := Command{Type: FilterAdd}
	if len(tokens) < 3 {
		return cmd, fmt.Errorf("%w: filter add needs an id", cansniffer.ErrInvalidParam)
	}
	id, err := p.parseID(tokens[2])
	if err != nil {
		return cmd, err
	}
	cmd.Filter.ID = id
	cmd.Filter.Kind = cansniffer.KindForID(id)
	if len(tokens) >= 4 {
		cmd.Filter.Mask, err = p.parseNumber(tokens[3])
		if err != nil {
			return cmd, err
		}
	}
	if len(tokens) >= 5 {
		cmd.Filter.Kind, err = parseKind(tokens[4])
		if err != nil {
			return cmd, err
		}
	}
	return cmd, nil
}

// filter del <id>|all
func (p *Parser) parseFilterDelete(tokens []string) (Command, error) {
	cmd := Command{Type: FilterDelete}
	if len(tokens) < 3 {
		return cmd, fmt.Errorf("%w: filter del needs an id or all", cansniffer.ErrInvalidParam)
	}
	if tokens[2] == "all" {
		cmd.Filter.DeleteAll = true
		return cmd, nil
	}
	id, err := p.parseID(tokens[2])
	if err != nil {
		return cmd, err
	}
	cmd.Filter.ID = id
	cmd.Filter.Kind = cansniffer.KindForID(id)
	return cmd, nil
}

// write <id> <hex-bytes...>
func (p *Parser) parseWrite(tokens []string) (Command, error) {
	cmd := Command{Type: Write}
	if len(tokens) < 3 {
		return cmd, fmt.Errorf("%w: write needs an id and data", cansniffer.ErrInvalidParam)
	}
	id, err := p.parseID(tokens[1])
	if err != nil {
		return cmd, err
	}
	cmd.Write.ID = id
	cmd.Write.Kind = cansniffer.KindForID(id)
	cmd.Write.Count = 1
	// Data may be spread over several tokens
	for _, token := range tokens[2:] {
		var chunk [8]byte
		n, err := ParseDataBytes(token, &chunk)
		if err != nil {
			return cmd, err
		}
		if int(cmd.Write.Len)+int(n) > len(cmd.Write.Data) {
			return cmd, fmt.Errorf("%w: more than %v data bytes", cansniffer.ErrInvalidParam, len(cmd.Write.Data))
		}
		copy(cmd.Write.Data[cmd.Write.Len:], chunk[:n])
		cmd.Write.Len += n
	}
	return cmd, nil
}

// write seq <id> <hex-bytes> <count> <interval_ms>
func (p *Parser) parseWriteSequence(tokens []string) (Command, error) {
	cmd := Command{Type: WriteSequence}
	if len(tokens) < 6 {
		return cmd, fmt.Errorf("%w: write seq needs id, data, count and interval", cansniffer.ErrInvalidParam)
	}
	id, err := p.parseID(tokens[2])
	if err != nil {
		return cmd, err
	}
	cmd.Write.ID = id
	cmd.Write.Kind = cansniffer.KindForID(id)
	cmd.Write.Len, err = ParseDataBytes(tokens[3], &cmd.Write.Data)
	if err != nil {
		return cmd, err
	}
	cmd.Write.Count, err = p.parseNumber(tokens[4])
	if err != nil {
		return cmd, err
	}
	if cmd.Write.Count > MaxSequenceCount {
		return cmd, fmt.Errorf("%w: count %v above %v", cansniffer.ErrInvalidParam, cmd.Write.Count, MaxSequenceCount)
	}
	cmd.Write.IntervalMs, err = p.parseNumber(tokens[5])
	if err != nil {
		return cmd, err
	}
	return cmd, nil
}

// write stop <id>|all
func (p *Parser) parseWriteStop(tokens []string) (Command, error) {
	cmd := Command{Type: WriteStop}
	if len(tokens) < 3 {
		return cmd, fmt.Errorf("%w: write stop needs an id or all", cansniffer.ErrInvalidParam)
	}
	if tokens[2] == "all" {
		cmd.Write.StopAll = true
		return cmd, nil
	}
	id, err := p.parseID(tokens[2])
	if err != nil {
		return cmd, err
	}
	cmd.Write.ID = id
	cmd.Write.Kind = cansniffer.KindForID(id)
	return cmd, nil
}
