package schema

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/karesti/protostream/internal/marshal"
)

type testColor int32

func (testColor) ProtoEnumValues() []EnumValue {
	return []EnumValue{
		{Label: "RED", Number: 0},
		{Label: "BLUE", Number: 1},
	}
}

type testAddress struct {
	Street string `proto:"1,required"`
	Zip    *int32 `proto:"2"`
}

type testPerson struct {
	Name      string        `proto:"1,required"`
	Age       int32         `proto:"2,type=sint32"`
	Emails    []string      `proto:"3"`
	Avatar    []byte        `proto:"4"`
	Address   *testAddress  `proto:"5"`
	Favorite  testColor     `proto:"6,default=BLUE"`
	PastAddrs []testAddress `proto:"7,name=past_addresses"`
	Score     float64       `proto:"8"`
	Ignored   string
	Skipped   string `proto:"-"`
	hidden    string `proto:"9"`
}

func personTypes() (*MessageType, *MessageType, *EnumType) {
	person := NewMessageType("Person", reflect.TypeOf(testPerson{}))
	address := NewMessageType("Address", reflect.TypeOf(testAddress{}))
	color := NewEnumType("Color", reflect.TypeOf(testColor(0)))
	person.AddNested(address, color)
	return person, address, color
}

func TestScanMembers(t *testing.T) {
	t.Run("struct tags", func(t *testing.T) {
		person, address, color := personTypes()
		idx := NewIndex(person)

		require.NoError(t, address.ScanMembers(idx))
		require.NoError(t, color.ScanMembers(idx))
		require.NoError(t, person.ScanMembers(idx))

		fields := person.Fields()
		require.Len(t, fields, 8)

		expected := []Field{
			{Name: "name", Number: 1, Type: TypeString, Label: LabelRequired, GoName: "Name"},
			{Name: "age", Number: 2, Type: TypeSint32, GoName: "Age"},
			{Name: "emails", Number: 3, Type: TypeString, Label: LabelRepeated, GoName: "Emails"},
			{Name: "avatar", Number: 4, Type: TypeBytes, GoName: "Avatar"},
			{Name: "address", Number: 5, Type: TypeMessage, TypeName: "Person.Address", GoName: "Address"},
			{Name: "favorite", Number: 6, Type: TypeEnum, TypeName: "Person.Color", DefaultValue: "BLUE", GoName: "Favorite"},
			{Name: "past_addresses", Number: 7, Type: TypeMessage, TypeName: "Person.Address", Label: LabelRepeated, GoName: "PastAddrs"},
			{Name: "score", Number: 8, Type: TypeDouble, GoName: "Score"},
		}
		for i, f := range fields {
			assert.Equal(t, expected[i], *f, "field %d", i)
		}

		assert.Equal(t, []EnumValue{{Label: "RED", Number: 0}, {Label: "BLUE", Number: 1}}, color.Values())
		assert.Equal(t, StateMembersScanned, person.State())
	})

	t.Run("emits scanned schema", func(t *testing.T) {
		person, address, color := personTypes()
		idx := NewIndex(person)
		for _, md := range []TypeMetadata{address, color, person} {
			require.NoError(t, md.ScanMembers(idx))
		}

		w := NewSchemaWriter()
		person.EmitSchema(w)

		expected := `message Person {
  message Address {
    required string street = 1;
    optional int32 zip = 2;
  }
  enum Color {
    RED = 0;
    BLUE = 1;
  }
  required string name = 1;
  optional sint32 age = 2;
  repeated string emails = 3;
  optional bytes avatar = 4;
  optional Person.Address address = 5;
  optional Person.Color favorite = 6 [default = BLUE];
  repeated Person.Address past_addresses = 7;
  optional double score = 8;
}
`
		assert.Equal(t, expected, w.String())
	})

	t.Run("pointer native type", func(t *testing.T) {
		msg := NewMessageType("Address", reflect.TypeOf(&testAddress{}))
		require.NoError(t, msg.ScanMembers(nil))
		assert.Len(t, msg.Fields(), 2)
	})

	t.Run("unresolved message type", func(t *testing.T) {
		msg := NewMessageType("Person", reflect.TypeOf(testPerson{}))
		err := msg.ScanMembers(nil)

		assert.ErrorIs(t, err, ErrUnresolvedType)
		assert.Contains(t, err.Error(), "Person.Address")
		assert.Equal(t, StateConstructed, msg.State())
	})

	t.Run("resolver func", func(t *testing.T) {
		target := NewMessageType("Addr", nil)
		calls := 0
		resolver := ResolverFunc(func(rt reflect.Type) (TypeMetadata, bool) {
			calls++
			if rt == reflect.TypeOf(testAddress{}) {
				return target, true
			}
			return NewEnumType("Tone", rt), true
		})

		msg := NewMessageType("Person", reflect.TypeOf(testPerson{}))
		require.NoError(t, msg.ScanMembers(resolver))

		f, ok := msg.Field("favorite")
		require.True(t, ok)
		assert.Equal(t, TypeEnum, f.Type)
		assert.Equal(t, "Tone", f.TypeName)
		assert.Equal(t, 3, calls)
	})

	t.Run("not a struct", func(t *testing.T) {
		msg := NewMessageType("Number", reflect.TypeOf(0))
		assert.ErrorIs(t, msg.ScanMembers(nil), ErrNotStruct)
	})
}

func TestScanTagErrors(t *testing.T) {
	type badNumber struct {
		A string `proto:"one"`
	}
	type badOption struct {
		A string `proto:"1,packed"`
	}
	type badName struct {
		A string `proto:"1,name=has-dash"`
	}
	type badType struct {
		A string `proto:"1,type=varchar"`
	}
	type singularSlice struct {
		A []string `proto:"1,required"`
	}
	type declaredEnum struct {
		A testColor `proto:"1,type=enum"`
	}
	type unsupported struct {
		A map[string]string `proto:"1"`
	}

	tests := []struct {
		name     string
		typ      reflect.Type
		expected error
	}{
		{"number", reflect.TypeOf(badNumber{}), ErrInvalidTag},
		{"option", reflect.TypeOf(badOption{}), ErrInvalidTag},
		{"name", reflect.TypeOf(badName{}), ErrInvalidTag},
		{"type", reflect.TypeOf(badType{}), ErrInvalidTag},
		{"singular slice", reflect.TypeOf(singularSlice{}), ErrInvalidTag},
		{"declared enum unresolved", reflect.TypeOf(declaredEnum{}), ErrUnresolvedType},
		{"map", reflect.TypeOf(unsupported{}), ErrUnresolvedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewMessageType("Bad", tt.typ)
			err := msg.ScanMembers(nil)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestScanExplicitScalarOverride(t *testing.T) {
	type ids struct {
		ID    uint64 `proto:"1,type=fixed64"`
		Count int    `proto:"2"`
	}

	msg := NewMessageType("Ids", reflect.TypeOf(ids{}))
	require.NoError(t, msg.ScanMembers(nil))

	id, ok := msg.Field("id")
	require.True(t, ok)
	assert.Equal(t, TypeFixed64, id.Type)

	count, ok := msg.Field("count")
	require.True(t, ok)
	assert.Equal(t, TypeInt64, count.Type)
}

type testHolder struct {
	Name *wrapperspb.StringValue `proto:"1"`
	Home testAddress             `proto:"2"`
	Work *testAddress            `proto:"3"`
}

func TestScanPointerNativeTypes(t *testing.T) {
	wrapper := NewProxy(marshal.NewProtoMessage(&wrapperspb.StringValue{}))
	address := NewMessageType("Address", reflect.TypeOf(&testAddress{}))
	holder := NewMessageType("Holder", reflect.TypeOf(testHolder{}))

	idx := NewIndex(wrapper, address, holder)
	require.NoError(t, holder.ScanMembers(idx))

	name, ok := holder.Field("name")
	require.True(t, ok)
	assert.Equal(t, TypeMessage, name.Type)
	assert.Equal(t, "google.protobuf.StringValue", name.TypeName)

	for _, fieldName := range []string{"home", "work"} {
		f, ok := holder.Field(fieldName)
		require.True(t, ok, fieldName)
		assert.Equal(t, TypeMessage, f.Type, fieldName)
		assert.Equal(t, "Address", f.TypeName, fieldName)
	}
}

func TestScanPointerEnumType(t *testing.T) {
	color := NewEnumType("Color", reflect.TypeOf(new(testColor)))

	require.NotPanics(t, func() {
		require.NoError(t, color.ScanMembers(nil))
	})
	assert.Equal(t, []EnumValue{{Label: "RED", Number: 0}, {Label: "BLUE", Number: 1}}, color.Values())
}
