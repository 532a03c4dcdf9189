package main

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/lightldap/lightldap/internal/toml"
	"github.com/lightldap/lightldap/pkg/config"
	"github.com/lightldap/lightldap/pkg/server"
)

const sampleBaseDN = "dc=lightldap,dc=com"

func TestParseArgs(t *testing.T) {
	Convey("Parsing the command line", t, func() {
		a, err := parseArgs([]string{"-c", "sample-simple.cfg", "--ldap", "127.0.0.1:3389", "--check-config"})
		So(err, ShouldBeNil)

		So(a["--config"], ShouldEqual, "sample-simple.cfg")
		So(a["--ldap"], ShouldEqual, "127.0.0.1:3389")
		So(a["--check-config"], ShouldEqual, true)
		So(a["-r"], ShouldEqual, "us-east-1")
		So(a["--ldaps"], ShouldBeNil)
	})
}

func startSample(t *testing.T) (*server.LdapSvc, string) {
	t.Helper()

	nop := zerolog.Nop()
	cfg, err := toml.NewConfig("sample-simple.cfg", map[string]interface{}{}, &nop)
	if err != nil {
		t.Fatalf("sample configuration does not load: %s", err)
	}

	s, err := server.NewServer(server.Config(cfg))
	if err != nil {
		t.Fatalf("could not create server: %s", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not listen: %s", err)
	}
	go s.Serve(ln)

	return s, "ldap://" + ln.Addr().String()
}

func TestSampleSimple(t *testing.T) {
	Convey("Testing sample-simple local file-based LDAP server", t, func() {
		s, url := startSample(t)
		defer s.Shutdown()

		l, err := goldap.DialURL(url)
		So(err, ShouldBeNil)
		defer l.Close()

		Convey("hackers can bind with the main password", func() {
			So(l.Bind("cn=hackers,"+sampleBaseDN, "dogood"), ShouldBeNil)

			id, err := l.WhoAmI(nil)
			So(err, ShouldBeNil)
			So(id.AuthzID, ShouldEqual, "dn: cn=hackers,"+sampleBaseDN)
		})

		Convey("serviceuser can bind with an application password", func() {
			So(l.Bind("serviceuser", "TestAppPw1"), ShouldBeNil)
		})

		Convey("otpuser needs a code", func() {
			err := l.Bind("cn=otpuser,"+sampleBaseDN, "dogood")
			So(goldap.IsErrorWithCode(err, goldap.LDAPResultInvalidCredentials), ShouldBeTrue)
		})

		Convey("johndoe is disabled", func() {
			err := l.Bind("cn=johndoe,"+sampleBaseDN, "dogood")
			So(goldap.IsErrorWithCode(err, goldap.LDAPResultInvalidCredentials), ShouldBeTrue)
		})

		Convey("a bound search lists every configured user", func() {
			So(l.Bind("cn=hackers,"+sampleBaseDN, "dogood"), ShouldBeNil)

			res, err := l.Search(goldap.NewSearchRequest(
				sampleBaseDN, goldap.ScopeWholeSubtree, goldap.NeverDerefAliases, 0, 0, false,
				"(objectClass=*)", []string{"uid", "mail"}, nil,
			))
			So(err, ShouldBeNil)
			So(len(res.Entries), ShouldEqual, 4)

			first := res.Entries[0]
			So(first.DN, ShouldEqual, "cn=hackers,"+sampleBaseDN)
			So(first.GetAttributeValue("uid"), ShouldEqual, "hackers")
			So(first.GetAttributeValue("mail"), ShouldEqual, "hackers@lightldap.com")
		})
	})
}

func TestReloadConfig(t *testing.T) {
	Convey("Given a running configuration", t, func() {
		log = zerolog.Nop()
		args = map[string]interface{}{}

		path := filepath.Join(t.TempDir(), "lightldap.cfg")
		write := func(content string) {
			So(os.WriteFile(path, []byte(content), 0o600), ShouldBeNil)
		}
		write(`
[ldap]
  enabled = true
  listen = "127.0.0.1:3893"
[ldaps]
  enabled = false
[backend]
  basedn = "dc=example,dc=com"
[[users]]
  name = "bob"
`)
		reloadConfig(path)
		So(len(activeConfig.Users), ShouldEqual, 1)

		Convey("a changed file replaces the users", func() {
			write(`
[ldap]
  enabled = true
  listen = "127.0.0.1:3893"
[ldaps]
  enabled = false
[backend]
  basedn = "dc=example,dc=com"
[[users]]
  name = "bob"
[[users]]
  name = "jim"
`)
			reloadConfig(path)
			So(len(activeConfig.Users), ShouldEqual, 2)
			So(activeConfig.Users[1].Name, ShouldEqual, "jim")
		})

		Convey("a broken file keeps the old configuration", func() {
			write("[ldap\n")
			reloadConfig(path)
			So(len(activeConfig.Users), ShouldEqual, 1)
		})

		Convey("the status page reflects the configuration", func() {
			st := serverStatus()
			So(st.BaseDN, ShouldEqual, "dc=example,dc=com")
			So(st.Datastore, ShouldEqual, "config")
			So(st.LDAP, ShouldEqual, "127.0.0.1:3893")
			So(st.LDAPS, ShouldBeEmpty)
		})

		Reset(func() {
			activeConfig = &config.Config{}
		})
	})
}
