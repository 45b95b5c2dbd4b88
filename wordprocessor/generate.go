package wordprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/sheltermanager/asmdb"
	"github.com/shopspring/decimal"
)

// Kind of record a document is generated for.
type Kind string

const (
	KindAnimal   Kind = "animal"
	KindPerson   Kind = "person"
	KindMovement Kind = "movement"
	KindDonation Kind = "donation"
	KindIncident Kind = "incident"
)

var kindTables = map[Kind]string{
	KindAnimal:   "animal",
	KindPerson:   "owner",
	KindMovement: "adoption",
	KindDonation: "ownerdonation",
	KindIncident: "animalcontrol",
}

var (
	ErrUnknownKind = errors.New("unknown document kind")
)

type (
	// ValidationError is returned when the record to generate a document
	// for does not exist. Nothing has been loaded or written when it is
	// returned.
	ValidationError struct {
		Message string
	}

	// Generator builds documents for records from templates.
	Generator struct {
		DB        *asmdb.Database
		Templates TemplateStore
		Format    Formatter
		// Image returns the image of a record for ODT templates, nil if
		// the record has none. Optional.
		Image func(ctx context.Context, kind Kind, id int64) ([]byte, error)
	}
)

func (e *ValidationError) Error() string {
	return e.Message
}

func NewGenerator(d *asmdb.Database, templates TemplateStore) *Generator {
	return &Generator{
		DB:        d,
		Templates: templates,
		Format:    DefaultFormatter,
	}
}

// Generate fills the template with the tags of the record with the ID and
// of the user and organisation.
func (g *Generator) Generate(ctx context.Context, kind Kind, templateID, id int64, username string) ([]byte, error) {
	table, ok := kindTables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	row, err := g.DB.QueryRow(table, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &ValidationError{Message: fmt.Sprintf("%d is not a valid %s ID", id, kind)}
	}
	tags, err := g.RecordTags(kind, row)
	if err != nil {
		return nil, err
	}
	org, err := g.OrgTags(username)
	if err != nil {
		return nil, err
	}
	tags = AppendTags(tags, org)
	tpl, err := g.Templates.Template(ctx, templateID)
	if err != nil {
		return nil, err
	}
	var image []byte
	if g.Image != nil && (kind == KindAnimal || kind == KindPerson) {
		if image, err = g.Image(ctx, kind, id); err != nil {
			return nil, err
		}
	}
	return SubstituteTemplate(tpl, tags, image)
}

// RecordTags returns the tags of the record and of the records linked to
// it. Columns of the record win over columns of linked records with the
// same name.
func (g *Generator) RecordTags(kind Kind, row *asmdb.Row) (Tags, error) {
	tags := Tags{}
	add := func(r *asmdb.Row) {
		tags = AppendTags(tags, RowTags("", r, g.Format))
	}
	switch kind {
	case KindAnimal:
		m, err := g.first("SELECT * FROM adoption WHERE AnimalID = ? AND MovementDate IS NOT NULL AND ReturnDate IS NULL AND OwnerID > 0 ORDER BY MovementDate DESC", row.Int("ID"))
		if err != nil {
			return nil, err
		}
		var ownerID int64
		switch {
		case m != nil:
			ownerID = m.Int("OWNERID")
			donations, err := g.DB.Query("SELECT * FROM ownerdonation WHERE MovementID = ? ORDER BY Date", m.Int("ID"))
			if err != nil {
				return nil, err
			}
			tags = AppendTags(tags, g.donationTags(donations))
			add(m)
		case row.Int("RESERVEDOWNERID") > 0:
			ownerID = row.Int("RESERVEDOWNERID")
		case row.Int("NONSHELTERANIMAL") == 1:
			ownerID = row.Int("ORIGINALOWNERID")
		}
		if err := g.addLinked(add, "owner", ownerID); err != nil {
			return nil, err
		}
	case KindPerson:
		m, err := g.first("SELECT * FROM adoption WHERE OwnerID = ? ORDER BY MovementDate DESC", row.Int("ID"))
		if err != nil {
			return nil, err
		}
		if m != nil {
			if err := g.addLinked(add, "animal", m.Int("ANIMALID")); err != nil {
				return nil, err
			}
			add(m)
		}
	case KindMovement:
		if err := g.addLinked(add, "animal", row.Int("ANIMALID")); err != nil {
			return nil, err
		}
		if err := g.addLinked(add, "owner", row.Int("OWNERID")); err != nil {
			return nil, err
		}
		donations, err := g.DB.Query("SELECT * FROM ownerdonation WHERE MovementID = ? ORDER BY Date", row.Int("ID"))
		if err != nil {
			return nil, err
		}
		tags = AppendTags(tags, g.donationTags(donations))
	case KindDonation:
		links := [][2]string{{"animal", "ANIMALID"}, {"adoption", "MOVEMENTID"}, {"owner", "OWNERID"}}
		for _, l := range links {
			if err := g.addLinked(add, l[0], row.Int(l[1])); err != nil {
				return nil, err
			}
		}
	case KindIncident:
		if err := g.addLinked(add, "owner", row.Int("OWNERID")); err != nil {
			return nil, err
		}
	}
	add(row)
	return tags, nil
}

// donationFields are the tags of each payment. PAYMENT and DONATION tags
// are the same values under both names.
var donationFields = map[string]string{
	"DONATIONID":       "ID",
	"DONATIONAMOUNT":   "c:DONATION",
	"DONATIONDATE":     "d:DATE",
	"DONATIONDATEDUE":  "d:DATEDUE",
	"DONATIONCOMMENTS": "COMMENTS",
	"PAYMENTID":        "ID",
	"PAYMENTAMOUNT":    "c:DONATION",
	"PAYMENTDATE":      "d:DATE",
	"PAYMENTDATEDUE":   "d:DATEDUE",
	"PAYMENTCOMMENTS":  "COMMENTS",
	"PAYMENTVATAMOUNT": "c:VATAMOUNT",
	"PAYMENTTAXAMOUNT": "c:VATAMOUNT",
	"PAYMENTVATRATE":   "f:VATRATE",
	"PAYMENTTAXRATE":   "f:VATRATE",
}

// donationTags makes indexed tags for each payment, tags without an index
// for the first one and PAYMENTTOTAL tags. Payments without a date are due,
// the others received.
func (g *Generator) donationTags(rows []*asmdb.Row) Tags {
	tags := TableTags(rows, donationFields, "", "", "", g.Format)
	if len(rows) > 0 {
		for k, v := range donationFields {
			tags[k] = TableValue(rows[0], v, g.Format)
		}
	}
	var due, received, vat int64
	rate := decimal.Zero
	for _, r := range rows {
		if r.Value("DATE") == nil {
			due += r.Int("DONATION")
		} else {
			received += r.Int("DONATION")
			vat += r.Int("VATAMOUNT")
		}
		if v := decimal.NewFromFloat(r.Float("VATRATE")); v.GreaterThan(rate) {
			rate = v
		}
	}
	tags["PAYMENTTOTALDUE"] = g.Format.Currency(due)
	tags["PAYMENTTOTALRECEIVED"] = g.Format.Currency(received)
	tags["PAYMENTTOTALVAT"] = g.Format.Currency(vat)
	tags["PAYMENTTOTALTAX"] = g.Format.Currency(vat)
	tags["PAYMENTTOTAL"] = g.Format.Currency(received + vat)
	tags["PAYMENTTOTALVATRATE"] = rate.StringFixed(2)
	tags["PAYMENTTOTALTAXRATE"] = rate.StringFixed(2)
	return tags
}

func (g *Generator) addLinked(add func(*asmdb.Row), table string, id int64) error {
	if id <= 0 {
		return nil
	}
	r, err := g.DB.QueryRow(table, id)
	if err != nil {
		return err
	}
	if r != nil {
		add(r)
	}
	return nil
}

func (g *Generator) first(sql string, params ...interface{}) (*asmdb.Row, error) {
	rows, err := g.DB.Query(sql, params...)
	if err != nil {
		return nil, err
	}
	return asmdb.FirstRow(rows), nil
}

// OrgTags returns the organisation tags from the configuration table and
// the tags of the user.
func (g *Generator) OrgTags(username string) (Tags, error) {
	rows, err := g.DB.Query("SELECT ItemName, ItemValue FROM configuration")
	if err != nil {
		return nil, err
	}
	conf := map[string]string{}
	for _, r := range rows {
		conf[r.Str("ITEMNAME")] = r.Str("ITEMVALUE")
	}
	u, err := g.first("SELECT * FROM users WHERE UserName = ?", username)
	if err != nil {
		return nil, err
	}
	var realname, email, sig string
	if u != nil {
		realname = u.Str("REALNAME")
		email = u.Str("EMAILADDRESS")
		sig = u.Str("SIGNATURE")
	}
	name := conf["Organisation"]
	address := conf["OrganisationAddress"]
	town := conf["OrganisationTown"]
	county := conf["OrganisationCounty"]
	postcode := conf["OrganisationPostcode"]
	tel := conf["OrganisationTelephone"]
	return Tags{
		"ORGANISATION":          name,
		"ORGANISATIONADDRESS":   address,
		"ORGANISATIONTOWN":      town,
		"ORGANISATIONCOUNTY":    county,
		"ORGANISATIONPOSTCODE":  postcode,
		"ORGANISATIONTELEPHONE": tel,
		"ORGANIZATION":          name,
		"ORGANIZATIONADDRESS":   address,
		"ORGANIZATIONCITY":      town,
		"ORGANIZATIONSTATE":     county,
		"ORGANIZATIONZIPCODE":   postcode,
		"ORGANIZATIONTELEPHONE": tel,
		"DATE":                  g.Format.Date(g.DB.Now()),
		"USERNAME":              username,
		"USERREALNAME":          realname,
		"USEREMAILADDRESS":      email,
		"USERSIGNATURE":         `<img src="` + sig + `" >`,
		"USERSIGNATURESRC":      sig,
	}, nil
}
