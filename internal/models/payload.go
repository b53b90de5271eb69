package models

// Payload is the closed set of kind specific artifact contents.
// Adding a kind means adding a Visitor method, so every consumer has to
// decide what to do with it.
type Payload interface {
	Kind() Kind
	Accept(v Visitor)
}

// Visitor is implemented by everything that walks artifact payloads.
type Visitor interface {
	VisitCodeSystem(cs *CodeSystem)
	VisitValueSet(vs *ValueSet)
	VisitConceptMap(cm *ConceptMap)
	VisitStructureDefinition(sd *StructureDefinition)
	VisitCapabilityStatement(cs *CapabilityStatement)
	VisitOther(o *Other)
}

func (*CodeSystem) Kind() Kind          { return KindCodeSystem }
func (*ValueSet) Kind() Kind            { return KindValueSet }
func (*ConceptMap) Kind() Kind          { return KindConceptMap }
func (*StructureDefinition) Kind() Kind { return KindStructureDefinition }
func (*CapabilityStatement) Kind() Kind { return KindCapabilityStatement }
func (o *Other) Kind() Kind             { return o.Type }

func (p *CodeSystem) Accept(v Visitor)          { v.VisitCodeSystem(p) }
func (p *ValueSet) Accept(v Visitor)            { v.VisitValueSet(p) }
func (p *ConceptMap) Accept(v Visitor)          { v.VisitConceptMap(p) }
func (p *StructureDefinition) Accept(v Visitor) { v.VisitStructureDefinition(p) }
func (p *CapabilityStatement) Accept(v Visitor) { v.VisitCapabilityStatement(p) }
func (p *Other) Accept(v Visitor)               { v.VisitOther(p) }
