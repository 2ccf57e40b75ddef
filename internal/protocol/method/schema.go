package method

import "fmt"

// ArgType is the wire type of one method argument.
type ArgType uint8

const (
	ArgBit ArgType = iota + 1
	ArgOctet
	ArgShort
	ArgLong
	ArgLongLong
	ArgShortString
	ArgLongString
	ArgTimestamp
	ArgTable
)

func (t ArgType) String() string {
	switch t {
	case ArgBit:
		return "bit"
	case ArgOctet:
		return "octet"
	case ArgShort:
		return "short"
	case ArgLong:
		return "long"
	case ArgLongLong:
		return "longlong"
	case ArgShortString:
		return "shortstr"
	case ArgLongString:
		return "longstr"
	case ArgTimestamp:
		return "timestamp"
	case ArgTable:
		return "table"
	default:
		return fmt.Sprintf("argtype(%d)", uint8(t))
	}
}

// ArgSpec declares one positional argument.
type ArgSpec struct {
	Name string
	Type ArgType
}

// Schema is the argument list of one method.
type Schema struct {
	ClassID  uint16
	MethodID uint16
	Name     string
	Args     []ArgSpec
}

type key struct {
	class, method uint16
}

var classNames = map[uint16]string{
	ClassConnection: "connection",
	ClassChannel:    "channel",
	ClassAccess:     "access",
	ClassExchange:   "exchange",
	ClassQueue:      "queue",
	ClassBasic:      "basic",
	ClassTx:         "tx",
}

const (
	ClassConnection uint16 = 10
	ClassChannel    uint16 = 20
	ClassAccess     uint16 = 30
	ClassExchange   uint16 = 40
	ClassQueue      uint16 = 50
	ClassBasic      uint16 = 60
	ClassTx         uint16 = 90
)

var registry = map[key]Schema{}

func register(classID, methodID uint16, name string, args ...ArgSpec) {
	registry[key{classID, methodID}] = Schema{
		ClassID:  classID,
		MethodID: methodID,
		Name:     classNames[classID] + "." + name,
		Args:     args,
	}
}

func bit(name string) ArgSpec { return ArgSpec{Name: name, Type: ArgBit} }
func octet(name string) ArgSpec { return ArgSpec{Name: name, Type: ArgOctet} }
func short(name string) ArgSpec { return ArgSpec{Name: name, Type: ArgShort} }
func long(name string) ArgSpec { return ArgSpec{Name: name, Type: ArgLong} }
func longlong(name string) ArgSpec { return ArgSpec{Name: name, Type: ArgLongLong} }
func shortstr(name string) ArgSpec { return ArgSpec{Name: name, Type: ArgShortString} }
func longstr(name string) ArgSpec { return ArgSpec{Name: name, Type: ArgLongString} }
func table(name string) ArgSpec { return ArgSpec{Name: name, Type: ArgTable} }

func init() {
	register(ClassConnection, 10, "start",
		octet("version-major"), octet("version-minor"), table("server-properties"),
		longstr("mechanisms"), longstr("locales"))
	register(ClassConnection, 11, "start-ok",
		table("client-properties"), shortstr("mechanism"), longstr("response"), shortstr("locale"))
	register(ClassConnection, 20, "secure", longstr("challenge"))
	register(ClassConnection, 21, "secure-ok", longstr("response"))
	register(ClassConnection, 30, "tune", short("channel-max"), long("frame-max"), short("heartbeat"))
	register(ClassConnection, 31, "tune-ok", short("channel-max"), long("frame-max"), short("heartbeat"))
	register(ClassConnection, 40, "open", shortstr("virtual-host"), shortstr("capabilities"), bit("insist"))
	register(ClassConnection, 41, "open-ok", shortstr("known-hosts"))
	register(ClassConnection, 50, "redirect", shortstr("host"), shortstr("known-hosts"))
	register(ClassConnection, 60, "close",
		short("reply-code"), shortstr("reply-text"), short("class-id"), short("method-id"))
	register(ClassConnection, 61, "close-ok")

	register(ClassChannel, 10, "open", shortstr("out-of-band"))
	register(ClassChannel, 11, "open-ok")
	register(ClassChannel, 20, "flow", bit("active"))
	register(ClassChannel, 21, "flow-ok", bit("active"))
	register(ClassChannel, 30, "alert", short("reply-code"), shortstr("reply-text"), table("details"))
	register(ClassChannel, 40, "close",
		short("reply-code"), shortstr("reply-text"), short("class-id"), short("method-id"))
	register(ClassChannel, 41, "close-ok")

	register(ClassAccess, 10, "request",
		shortstr("realm"), bit("exclusive"), bit("passive"), bit("active"), bit("write"), bit("read"))
	register(ClassAccess, 11, "request-ok", short("ticket"))

	register(ClassExchange, 10, "declare",
		short("ticket"), shortstr("exchange"), shortstr("type"),
		bit("passive"), bit("durable"), bit("auto-delete"), bit("internal"), bit("nowait"),
		table("arguments"))
	register(ClassExchange, 11, "declare-ok")
	register(ClassExchange, 20, "delete", short("ticket"), shortstr("exchange"), bit("if-unused"), bit("nowait"))
	register(ClassExchange, 21, "delete-ok")

	register(ClassQueue, 10, "declare",
		short("ticket"), shortstr("queue"),
		bit("passive"), bit("durable"), bit("exclusive"), bit("auto-delete"), bit("nowait"),
		table("arguments"))
	register(ClassQueue, 11, "declare-ok", shortstr("queue"), long("message-count"), long("consumer-count"))
	register(ClassQueue, 20, "bind",
		short("ticket"), shortstr("queue"), shortstr("exchange"), shortstr("routing-key"),
		bit("nowait"), table("arguments"))
	register(ClassQueue, 21, "bind-ok")
	register(ClassQueue, 30, "purge", short("ticket"), shortstr("queue"), bit("nowait"))
	register(ClassQueue, 31, "purge-ok", long("message-count"))
	register(ClassQueue, 40, "delete",
		short("ticket"), shortstr("queue"), bit("if-unused"), bit("if-empty"), bit("nowait"))
	register(ClassQueue, 41, "delete-ok", long("message-count"))

	register(ClassBasic, 10, "qos", long("prefetch-size"), short("prefetch-count"), bit("global"))
	register(ClassBasic, 11, "qos-ok")
	register(ClassBasic, 20, "consume",
		short("ticket"), shortstr("queue"), shortstr("consumer-tag"),
		bit("no-local"), bit("no-ack"), bit("exclusive"), bit("nowait"))
	register(ClassBasic, 21, "consume-ok", shortstr("consumer-tag"))
	register(ClassBasic, 30, "cancel", shortstr("consumer-tag"), bit("nowait"))
	register(ClassBasic, 31, "cancel-ok", shortstr("consumer-tag"))
	register(ClassBasic, 40, "publish",
		short("ticket"), shortstr("exchange"), shortstr("routing-key"), bit("mandatory"), bit("immediate"))
	register(ClassBasic, 50, "return",
		short("reply-code"), shortstr("reply-text"), shortstr("exchange"), shortstr("routing-key"))
	register(ClassBasic, 60, "deliver",
		shortstr("consumer-tag"), longlong("delivery-tag"), bit("redelivered"),
		shortstr("exchange"), shortstr("routing-key"))
	register(ClassBasic, 70, "get", short("ticket"), shortstr("queue"), bit("no-ack"))
	register(ClassBasic, 71, "get-ok",
		longlong("delivery-tag"), bit("redelivered"), shortstr("exchange"), shortstr("routing-key"),
		long("message-count"))
	register(ClassBasic, 72, "get-empty", shortstr("cluster-id"))
	register(ClassBasic, 80, "ack", longlong("delivery-tag"), bit("multiple"))
	register(ClassBasic, 90, "reject", longlong("delivery-tag"), bit("requeue"))
	register(ClassBasic, 100, "recover", bit("requeue"))

	register(ClassTx, 10, "select")
	register(ClassTx, 11, "select-ok")
	register(ClassTx, 20, "commit")
	register(ClassTx, 21, "commit-ok")
	register(ClassTx, 30, "rollback")
	register(ClassTx, 31, "rollback-ok")
}

// Lookup returns the schema registered for the ids.
func Lookup(classID, methodID uint16) (Schema, bool) {
	s, ok := registry[key{classID, methodID}]
	return s, ok
}

// Name is the dotted method name for the ids, falling back to numbers.
func Name(classID, methodID uint16) string {
	if s, ok := Lookup(classID, methodID); ok {
		return s.Name
	}
	return fmt.Sprintf("class-%d.method-%d", classID, methodID)
}
