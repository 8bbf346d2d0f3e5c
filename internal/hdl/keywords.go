package hdl

// vhdlKeywords lists the reserved words the shallow parser needs to
// recognize design-unit boundaries, library clauses, and instantiation
// shapes. VHDL keyword matching is case-insensitive; lookups use the
// lowercase form.
var vhdlKeywords = map[string]bool{
	"entity": true, "architecture": true, "of": true, "is": true,
	"begin": true, "end": true, "package": true, "body": true,
	"configuration": true, "context": true, "component": true,
	"use": true, "library": true, "generic": true, "port": true,
	"map": true, "all": true, "work": true, "for": true,
	"generate": true, "process": true, "signal": true, "variable": true,
	"constant": true, "function": true, "procedure": true, "if": true,
	"then": true, "else": true, "elsif": true, "case": true, "when": true,
	"others": true, "loop": true, "record": true, "type": true,
	"subtype": true, "return": true, "new": true,
}

// verilogKeywords covers the (System)Verilog design-unit and
// instantiation-relevant reserved words. Matching is case-sensitive.
var verilogKeywords = map[string]bool{
	"module": true, "macromodule": true, "endmodule": true,
	"primitive": true, "endprimitive": true, "interface": true,
	"endinterface": true, "program": true, "endprogram": true,
	"package": true, "endpackage": true, "class": true, "endclass": true,
	"config": true, "endconfig": true, "import": true, "export": true,
	"parameter": true, "localparam": true, "generate": true,
	"endgenerate": true, "begin": true, "end": true, "input": true,
	"output": true, "inout": true, "wire": true, "reg": true,
	"logic": true, "always": true, "always_ff": true, "always_comb": true,
	"assign": true, "function": true, "endfunction": true, "task": true,
	"endtask": true, "if": true, "else": true, "case": true, "endcase": true,
}
