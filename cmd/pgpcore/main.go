// This is free and unencumbered software released into the public domain.

// Command pgpcore is a thin demonstration front-end over the
// nullprogram.com/x/pgpcore/openpgp message-processing core: option
// parsing, file I/O and passphrase handling live here so the library
// package itself stays free of CLI concerns (spec section 1).
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"time"

	"golang.org/x/crypto/argon2"
	"nullprogram.com/x/optparse"
	"nullprogram.com/x/pgpcore/openpgp"
)

const (
	cmdKeygen = iota
	cmdSign
	cmdClearsign
	cmdEncrypt
	cmdDecrypt
	cmdVerify
)

const (
	kdfTime   = 1
	kdfMemory = 64 * 1024 // 64 MB, scaled down from the teacher's 1GB default for a demo binary
)

// fatal prints the message like fmt.Printf and exits 1, the teacher's
// original error-exit idiom.
func fatal(format string, args ...interface{}) {
	buf := bytes.NewBufferString("pgpcore: ")
	fmt.Fprintf(buf, format, args...)
	buf.WriteRune('\n')
	os.Stderr.Write(buf.Bytes())
	os.Exit(1)
}

type config struct {
	cmd  int
	args []string

	armor     bool
	detached  bool
	input     string
	load      string
	keyring   []string
	subkey    bool
	created   int64
	uid       string
	verify    bool
	hashAlg   byte
	sigFile   string
}

func usage(w io.Writer) {
	bw := bufio.NewWriter(w)
	i := "  "
	p := "pgpcore"
	f := func(s ...interface{}) { fmt.Fprintln(bw, s...) }
	f("Usage:")
	f(i, p, "-K -u id [-a] [-s] [-i pwfile]              generate a key")
	f(i, p, "-S -l key [-a] [-d] [-i pwfile] <doc         detached/embedded sign")
	f(i, p, "-T -l key [-i pwfile] <doc                   cleartext sign")
	f(i, p, "-E -k keyring [-l signkey] [-a] <doc         encrypt (optionally sign)")
	f(i, p, "-D -l key [-i pwfile] [-v] <msg              decrypt")
	f(i, p, "-V -k keyring [--sig sigfile] <doc          verify")
	f("Options:")
	f(i, "-a, --armor            encode/expect ASCII armor")
	f(i, "-d, --detached         produce a detached signature (-S only)")
	f(i, "-i, --input FILE       read passphrase from file")
	f(i, "-k, --keyring FILE     keyring file (repeatable)")
	f(i, "-l, --load FILE        secret key file")
	f(i, "-s, --subkey           also generate an encryption subkey (-K only)")
	f(i, "    --sig FILE         detached signature file (-V only)")
	f(i, "-u, --uid USERID       user ID for a generated key")
	f(i, "-v, --verify-signature also verify an embedded signature (-D only)")
	f(i, "-h, --help             print this help message")
	bw.Flush()
}

func parse() *config {
	conf := &config{cmd: cmdKeygen, hashAlg: openpgp.HashSHA512}
	options := []optparse.Option{
		{"keygen", 'K', optparse.KindNone},
		{"sign", 'S', optparse.KindNone},
		{"clearsign", 'T', optparse.KindNone},
		{"encrypt", 'E', optparse.KindNone},
		{"decrypt", 'D', optparse.KindNone},
		{"verify", 'V', optparse.KindNone},

		{"armor", 'a', optparse.KindNone},
		{"detached", 'd', optparse.KindNone},
		{"help", 'h', optparse.KindNone},
		{"input", 'i', optparse.KindRequired},
		{"keyring", 'k', optparse.KindRequired},
		{"load", 'l', optparse.KindRequired},
		{"subkey", 's', optparse.KindNone},
		{"sig", 0, optparse.KindRequired},
		{"uid", 'u', optparse.KindRequired},
		{"verify-signature", 'v', optparse.KindNone},
	}

	results, rest, err := optparse.Parse(options, os.Args)
	if err != nil {
		usage(os.Stderr)
		fatal("%s", err)
	}
	for _, r := range results {
		switch r.Long {
		case "keygen":
			conf.cmd = cmdKeygen
		case "sign":
			conf.cmd = cmdSign
		case "clearsign":
			conf.cmd = cmdClearsign
		case "encrypt":
			conf.cmd = cmdEncrypt
		case "decrypt":
			conf.cmd = cmdDecrypt
		case "verify":
			conf.cmd = cmdVerify
		case "armor":
			conf.armor = true
		case "detached":
			conf.detached = true
		case "help":
			usage(os.Stdout)
			os.Exit(0)
		case "input":
			conf.input = r.Optarg
		case "keyring":
			conf.keyring = append(conf.keyring, r.Optarg)
		case "load":
			conf.load = r.Optarg
		case "subkey":
			conf.subkey = true
		case "sig":
			conf.sigFile = r.Optarg
		case "uid":
			conf.uid = r.Optarg
		case "verify-signature":
			conf.verify = true
		}
	}
	conf.args = rest
	conf.created = time.Now().Unix()
	return conf
}

// firstLine returns the first line of filename, without its trailing
// newline. Empty files are ok (matches the teacher's firstLine).
func firstLine(filename string) ([]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	if !s.Scan() {
		if err := s.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s.Bytes(), nil
}

func readPassphrase(conf *config) []byte {
	if conf.input == "" {
		return nil
	}
	line, err := firstLine(conf.input)
	if err != nil {
		fatal("%s: %s", err, conf.input)
	}
	return line
}

// kdf derives a 64-byte seed from a passphrase and user ID, the same
// Argon2id construction the teacher uses to turn a memorized
// passphrase into deterministic key material (golang.org/x/crypto's
// argon2 subpackage, wired here rather than dropped as an unused
// teacher dependency).
func kdf(passphrase, uid []byte) []byte {
	return argon2.IDKey(passphrase, uid, kdfTime, kdfMemory, 1, 64)
}

func loadKeys(conf *config) []*openpgp.Key {
	var keys []*openpgp.Key
	for _, path := range conf.keyring {
		keys = append(keys, openpgp.ReadKeysFromFile(path)...)
	}
	return keys
}

func passphraseCallback(conf *config) openpgp.PassphraseFunc {
	pass := readPassphrase(conf)
	if pass == nil {
		return nil
	}
	return func([]byte) []byte { return pass }
}

func doKeygen(conf *config) {
	if conf.uid == "" {
		fatal("--uid is required")
	}
	passphrase := readPassphrase(conf)
	if passphrase == nil {
		fatal("--input PWFILE is required (no interactive prompt in this demo build)")
	}
	seed := kdf(passphrase, []byte(conf.uid))

	signKey := openpgp.NewSignKey(seed[:32], conf.created)
	userid := openpgp.NewUserID(conf.uid)

	var out bytes.Buffer
	out.Write(signKey.Packet())
	out.Write(userid.Serialize())
	flags := 0
	if conf.subkey {
		flags |= openpgp.FlagMDC
	}
	out.Write(signKey.SelfSign(userid, conf.created, flags))

	if conf.subkey {
		encKey, err := openpgp.NewEncryptKey(seed[32:], conf.created)
		if err != nil {
			fatal("%s", err)
		}
		out.Write(encKey.Packet())
		out.Write(signKey.Bind(encKey, conf.created))
	}

	writeOutput(conf, out.Bytes(), openpgp.ArmorPrivateKey)
}

func readAllStdinOrFile(args []string) []byte {
	var r io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			fatal("%s", err)
		}
		defer f.Close()
		r = f
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		fatal("%s", err)
	}
	return data
}

func writeOutput(conf *config, data []byte, armorKind string) {
	if conf.armor {
		wrapped, err := openpgp.Wrap(armorKind, data)
		if err != nil {
			fatal("%s", err)
		}
		data = []byte(wrapped)
	}
	if _, err := os.Stdout.Write(data); err != nil {
		fatal("%s", err)
	}
}

func loadSignKey(conf *config) *openpgp.Key {
	if conf.load == "" {
		fatal("--load KEYFILE is required")
	}
	keys := openpgp.ReadKeysFromFile(conf.load)
	if len(keys) == 0 {
		fatal("%s: no usable key", conf.load)
	}
	return keys[0]
}

func doSign(conf *config) {
	key := loadSignKey(conf)
	data := readAllStdinOrFile(conf.args)
	out, err := openpgp.Sign(data, key, readPassphrase(conf), conf.hashAlg, conf.detached)
	if err != nil {
		fatal("%s", err)
	}
	writeOutput(conf, out, openpgp.ArmorSignature)
}

func doClearsign(conf *config) {
	key := loadSignKey(conf)
	var in io.Reader = os.Stdin
	if len(conf.args) > 0 {
		f, err := os.Open(conf.args[0])
		if err != nil {
			fatal("%s", err)
		}
		defer f.Close()
		in = f
	}
	r, err := openpgp.Clearsign(in, key, readPassphrase(conf), conf.hashAlg)
	if err != nil {
		fatal("%s", err)
	}
	if _, err := io.Copy(os.Stdout, r); err != nil {
		fatal("%s", err)
	}
}

func doEncrypt(conf *config) {
	recipients := loadKeys(conf)
	if len(recipients) == 0 {
		fatal("--keyring FILE is required (no usable recipient)")
	}
	var signKey *openpgp.Key
	var passphrase openpgp.PassphraseFunc
	if conf.load != "" {
		signKey = loadSignKey(conf)
		passphrase = passphraseCallback(conf)
	}
	data := readAllStdinOrFile(conf.args)
	out, err := openpgp.Encrypt(data, recipients, signKey, passphrase, conf.armor)
	if err != nil {
		fatal("%s", err)
	}
	os.Stdout.Write(out)
}

func doDecrypt(conf *config) {
	keys := loadKeys(conf)
	if conf.load != "" {
		keys = append(keys, loadSignKey(conf))
	}
	if len(keys) == 0 {
		fatal("--keyring FILE or --load FILE is required")
	}
	data := readAllStdinOrFile(conf.args)
	out, err := openpgp.Decrypt(data, keys, passphraseCallback(conf), conf.verify)
	if err != nil {
		fatal("%s", err)
	}
	os.Stdout.Write(out)
}

func doVerify(conf *config) {
	keys := loadKeys(conf)
	if len(keys) == 0 {
		fatal("--keyring FILE is required")
	}
	data := readAllStdinOrFile(conf.args)
	var detached []byte
	if conf.sigFile != "" {
		var err error
		detached, err = ioutil.ReadFile(conf.sigFile)
		if err != nil {
			fatal("%s", err)
		}
	}
	ok, err := openpgp.Verify(data, detached, keys, passphraseCallback(conf))
	if err != nil {
		fatal("%s", err)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "signature does not verify")
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "signature verifies")
}

func main() {
	conf := parse()
	switch conf.cmd {
	case cmdKeygen:
		doKeygen(conf)
	case cmdSign:
		doSign(conf)
	case cmdClearsign:
		doClearsign(conf)
	case cmdEncrypt:
		doEncrypt(conf)
	case cmdDecrypt:
		doDecrypt(conf)
	case cmdVerify:
		doVerify(conf)
	}
}
