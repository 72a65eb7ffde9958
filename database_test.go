package jetdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/kjhughes/jetdb/internal/format"
	"github.com/kjhughes/jetdb/internal/row"
)

type DatabaseTestSuite struct {
	suite.Suite
	dir  string
	path string
}

func (s *DatabaseTestSuite) SetupTest() {
	dir, err := os.MkdirTemp("", "jetdb-test-*")
	s.Require().NoError(err)
	s.dir = dir
	s.path = filepath.Join(dir, "test.accdb")
}

func (s *DatabaseTestSuite) TearDownTest() {
	_ = os.RemoveAll(s.dir)
}

func (s *DatabaseTestSuite) TestCreateThenReopenPreservesFormatVersion() {
	db, err := Create(s.path, format.VersionJet4)
	s.Require().NoError(err)
	s.Equal(format.VersionJet4, db.Format().Version)
	s.Require().NoError(db.Close())

	reopened, err := Open(s.path)
	s.Require().NoError(err)
	defer reopened.Close()
	s.Equal(format.VersionJet4, reopened.Format().Version)
}

func (s *DatabaseTestSuite) TestCreateRefusesExistingFile() {
	db, err := Create(s.path, format.VersionJet4)
	s.Require().NoError(err)
	s.Require().NoError(db.Close())

	_, err = Create(s.path, format.VersionJet4)
	s.Error(err)
}

func (s *DatabaseTestSuite) TestCreateReadOnlyIsRejected() {
	_, err := Create(s.path, format.VersionJet4, WithReadOnly())
	s.Error(err)
}

func (s *DatabaseTestSuite) TestInsertAndReadRowWithinSession() {
	db, err := Create(s.path, format.VersionJet4)
	s.Require().NoError(err)
	defer db.Close()

	cols := []row.Column{
		{Name: "ID", Number: 0, Type: row.TypeLong, Flags: row.FlagFixedLen | row.FlagAutoNumber, FixedOffset: 0},
		{Name: "Name", Number: 1, Type: row.TypeText, Length: 50, VariableIndex: 0},
	}
	tbl, err := db.Catalog.CreateTable("Widgets", cols)
	s.Require().NoError(err)

	id, err := tbl.Insert(row.Values{"Name": "sprocket"})
	s.Require().NoError(err)

	values, err := tbl.Row(id)
	s.Require().NoError(err)
	s.Equal("sprocket", values["Name"])
	s.EqualValues(1, values["ID"])
}

func (s *DatabaseTestSuite) TestLongValueRoundTripsThroughPageIO() {
	db, err := Create(s.path, format.VersionJet4)
	s.Require().NoError(err)
	defer db.Close()

	cols := []row.Column{
		{Name: "ID", Number: 0, Type: row.TypeLong, Flags: row.FlagFixedLen | row.FlagAutoNumber, FixedOffset: 0},
		{Name: "Notes", Number: 1, Type: row.TypeMemo, VariableIndex: 0},
	}
	tbl, err := db.Catalog.CreateTable("Notes", cols)
	s.Require().NoError(err)

	big := make([]byte, db.Format().PageSize*2+37)
	for i := range big {
		big[i] = byte(i % 251)
	}

	id, err := tbl.Insert(row.Values{"Notes": big})
	s.Require().NoError(err)

	values, err := tbl.Row(id)
	s.Require().NoError(err)
	s.Equal(big, values["Notes"])
}

func TestDatabaseSuite(t *testing.T) {
	suite.Run(t, new(DatabaseTestSuite))
}
